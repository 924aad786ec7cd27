package shelfstar_test

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/shelfstar/shelfstar"
)

func TestStageError(t *testing.T) {
	err := errors.Wrap(shelfstar.NewStageError("load inventory", "inv.csv", io.ErrUnexpectedEOF), "running etl")
	if errors.Cause(err) != io.ErrUnexpectedEOF {
		t.Fatalf("unexpected cause: %v", errors.Cause(err))
	}
	if got := err.Error(); got != "running etl: stage load inventory (inv.csv): unexpected EOF" {
		t.Fatalf("unexpected message: %s", got)
	}
	se := shelfstar.NewStageError("commit", "", io.EOF)
	if se.Error() != "stage commit: EOF" {
		t.Fatalf("unexpected message: %s", se.Error())
	}
}
