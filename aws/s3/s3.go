// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package s3

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/pkg/errors"
	"github.com/shelfstar/shelfstar/csv"
)

// Scheme is the URL prefix which marks a location as an S3 object.
const Scheme = "s3://"

// Client reads input objects from S3 and uploads committed output tables to
// it.
type Client struct {
	s3       s3iface.S3API
	uploader s3manageriface.UploaderAPI
}

// ClientOption is a functional option type for Client.
type ClientOption func(c *Client)

// OptClientS3 replaces the S3 API used to fetch objects.
func OptClientS3(api s3iface.S3API) ClientOption {
	return func(c *Client) {
		c.s3 = api
	}
}

// OptClientUploader replaces the uploader used to write objects.
func OptClientUploader(u s3manageriface.UploaderAPI) ClientOption {
	return func(c *Client) {
		c.uploader = u
	}
}

// NewClient returns a Client for the given AWS region. Credentials come from
// the usual AWS environment variables, shared config or instance role.
func NewClient(region string, opts ...ClientOption) (*Client, error) {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}
	if c.s3 != nil && c.uploader != nil {
		return c, nil
	}
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region)},
	)
	if err != nil {
		return nil, errors.Wrap(err, "getting new session")
	}
	if c.s3 == nil {
		c.s3 = s3.New(sess)
	}
	if c.uploader == nil {
		c.uploader = s3manager.NewUploader(sess)
	}
	return c, nil
}

// IsURL reports whether loc names an S3 object or prefix.
func IsURL(loc string) bool {
	return strings.HasPrefix(loc, Scheme)
}

// ParseURL splits an s3://bucket/key URL into its bucket and key.
func ParseURL(loc string) (bucket, key string, err error) {
	if !IsURL(loc) {
		return "", "", errors.Errorf("'%s' is not an s3 URL", loc)
	}
	rest := strings.TrimPrefix(loc, Scheme)
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		return "", "", errors.Errorf("'%s' has no bucket", loc)
	}
	if len(parts) == 1 {
		return parts[0], "", nil
	}
	return parts[0], parts[1], nil
}

// Opener returns a csv.OpenStringer which reads the object at loc.
func (c *Client) Opener(loc string) (csv.OpenStringer, error) {
	bucket, key, err := ParseURL(loc)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, errors.Errorf("'%s' names a bucket, not an object", loc)
	}
	return &objectOpener{s3: c.s3, bucket: bucket, key: key}, nil
}

type objectOpener struct {
	s3     s3iface.S3API
	bucket string
	key    string
}

func (o *objectOpener) Open() (io.ReadCloser, error) {
	result, err := o.s3.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %v", o)
	}
	return result.Body, nil
}

func (o *objectOpener) String() string {
	return Scheme + o.bucket + "/" + o.key
}

// Upload copies the local file at path to the object at loc. The object only
// becomes visible once the upload has completed, so readers never see a
// partially written table.
func (c *Client) Upload(ctx context.Context, path, loc string) error {
	bucket, key, err := ParseURL(loc)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening upload file")
	}
	defer f.Close()
	_, err = c.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	return errors.Wrapf(err, "uploading %s to %s", path, loc)
}
