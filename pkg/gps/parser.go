package gps

import (
	"RailscanGolang/internal/entity"
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// ParseReport counts how a GPS log upload went. Skipped lines are not fatal.
type ParseReport struct {
	Parsed  int `json:"parsed"`
	Skipped int `json:"skipped"`
}

// ParseLog reads a GPS log: one header line, then comma-delimited rows of
// second,latitude,longitude,accuracy. Rows with missing fields or
// non-numeric values are skipped and counted; a NaN-bearing fix would
// silently corrupt nearest-neighbor matching downstream. Fixes come back in
// file order.
func ParseLog(r io.Reader, log *logrus.Logger) ([]entity.GpsFix, ParseReport, error) {
	var (
		fixes  []entity.GpsFix
		report ParseReport
	)

	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		if lineNo == 1 {
			// header
			continue
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) < 4 {
			report.Skipped++
			log.WithFields(logrus.Fields{
				"line":   lineNo,
				"fields": len(fields),
			}).Warn("GPS log line skipped, missing fields")
			continue
		}

		second, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			report.Skipped++
			log.WithFields(logrus.Fields{
				"line":  lineNo,
				"value": fields[0],
			}).Warn("GPS log line skipped, non-numeric second")
			continue
		}

		latitude, errLat := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		longitude, errLon := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		accuracy, errAcc := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
		if errLat != nil || errLon != nil || errAcc != nil {
			report.Skipped++
			log.WithFields(logrus.Fields{
				"line": lineNo,
			}).Warn("GPS log line skipped, non-numeric coordinate")
			continue
		}

		fixes = append(fixes, entity.GpsFix{
			Second:    second,
			Latitude:  latitude,
			Longitude: longitude,
			Accuracy:  accuracy,
		})
		report.Parsed++
	}

	if err := scanner.Err(); err != nil {
		return nil, report, err
	}

	return fixes, report, nil
}
