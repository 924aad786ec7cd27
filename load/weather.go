package load

import (
	"bufio"
	"strings"

	"github.com/pkg/errors"
	"github.com/shelfstar/shelfstar"
	"github.com/shelfstar/shelfstar/csv"
)

// WeatherSeparator splits the columns of the weather data. Columns are padded
// with a varying number of spaces, but always at least this many.
const WeatherSeparator = "         "

// LoadWeather reads the daily temperature file. Each line holds month, day,
// year and temperature. Fields which do not parse are nil.
func (l *Loader) LoadWeather(loc string) ([]shelfstar.WeatherReading, error) {
	const stage = "load weather"
	opener, err := l.Open(loc)
	if err != nil {
		return nil, shelfstar.NewStageError(stage, loc, err)
	}
	var recs []shelfstar.WeatherReading
	for try := 0; ; try++ {
		recs, err = readWeather(opener)
		if err == nil || try+1 >= l.retries {
			break
		}
		l.log.Sugar().Warnf("retrying weather read of %s: %v", opener, err)
	}
	if err != nil {
		return nil, shelfstar.NewStageError(stage, loc, err)
	}
	return recs, nil
}

func readWeather(opener csv.OpenStringer) ([]shelfstar.WeatherReading, error) {
	rc, err := opener.Open()
	if err != nil {
		return nil, errors.Wrap(err, "opening")
	}
	defer rc.Close()

	var recs []shelfstar.WeatherReading
	scanner := bufio.NewScanner(csv.Decode(rc))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		recs = append(recs, ParseWeatherLine(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", opener)
	}
	return recs, nil
}

// ParseWeatherLine parses a single line of weather data.
func ParseWeatherLine(line string) shelfstar.WeatherReading {
	fields := strings.Split(line, WeatherSeparator)
	field := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	return shelfstar.WeatherReading{
		Month:       parseInt(field(0)),
		Day:         parseInt(field(1)),
		Year:        parseInt(field(2)),
		Temperature: parseFloat(field(3)),
	}
}
