package incident

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dhruv1108git/pulse/internal/domain"
)

// Hash field names for the incident record.
const (
	fieldID          = "id"
	fieldReportType  = "report_type"
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldLat         = "lat"
	fieldLon         = "lon"
	fieldSeverity    = "severity"
	fieldTimestamp   = "timestamp"
	fieldEmbedding   = "embedding"
)

func incidentToFields(inc domain.Incident) (map[string]string, error) {
	fields := map[string]string{
		fieldID:          inc.ID,
		fieldReportType:  inc.ReportType,
		fieldTitle:       inc.Title,
		fieldDescription: inc.Description,
		fieldSeverity:    strconv.Itoa(inc.Severity),
		fieldTimestamp:   inc.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if inc.Location != nil {
		fields[fieldLat] = strconv.FormatFloat(inc.Location.Lat, 'f', -1, 64)
		fields[fieldLon] = strconv.FormatFloat(inc.Location.Lon, 'f', -1, 64)
	}
	if len(inc.Embedding) > 0 {
		raw, err := json.Marshal(inc.Embedding)
		if err != nil {
			return nil, fmt.Errorf("encode embedding: %w", err)
		}
		fields[fieldEmbedding] = string(raw)
	}
	return fields, nil
}

func incidentFromFields(fields map[string]string) (domain.Incident, error) {
	inc := domain.Incident{
		ID:          fields[fieldID],
		ReportType:  fields[fieldReportType],
		Title:       fields[fieldTitle],
		Description: fields[fieldDescription],
	}
	if inc.ID == "" {
		return domain.Incident{}, fmt.Errorf("incident record missing %s field", fieldID)
	}

	if raw := fields[fieldSeverity]; raw != "" {
		sev, err := strconv.Atoi(raw)
		if err != nil {
			return domain.Incident{}, fmt.Errorf("parse severity: %w", err)
		}
		inc.Severity = sev
	}
	if raw := fields[fieldTimestamp]; raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domain.Incident{}, fmt.Errorf("parse timestamp: %w", err)
		}
		inc.Timestamp = ts
	}

	latRaw, lonRaw := fields[fieldLat], fields[fieldLon]
	if latRaw != "" && lonRaw != "" {
		lat, err := strconv.ParseFloat(latRaw, 64)
		if err != nil {
			return domain.Incident{}, fmt.Errorf("parse lat: %w", err)
		}
		lon, err := strconv.ParseFloat(lonRaw, 64)
		if err != nil {
			return domain.Incident{}, fmt.Errorf("parse lon: %w", err)
		}
		inc.Location = &domain.GeoPoint{Lat: lat, Lon: lon}
	}

	if raw := fields[fieldEmbedding]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &inc.Embedding); err != nil {
			return domain.Incident{}, fmt.Errorf("decode embedding: %w", err)
		}
	}

	return inc, nil
}
