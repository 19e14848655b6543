package query

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dhruv1108git/pulse/internal/domain"
)

// Hash field names for the relay query record.
const (
	fieldQueryID      = "query_id"
	fieldKind         = "kind"
	fieldText         = "text"
	fieldOriginDevice = "origin_device"
	fieldRelayDevice  = "relay_device"
	fieldLat          = "lat"
	fieldLon          = "lon"
	fieldState        = "state"
	fieldResult       = "result"
	fieldError        = "error"
	fieldCreatedAt    = "created_at"
	fieldCompletedAt  = "completed_at"
)

func queryToFields(q domain.RelayQuery) map[string]string {
	fields := map[string]string{
		fieldQueryID:      q.QueryID,
		fieldKind:         string(q.Kind),
		fieldText:         q.Text,
		fieldOriginDevice: q.OriginDevice,
		fieldRelayDevice:  q.RelayDevice,
		fieldState:        string(q.State),
		fieldCreatedAt:    q.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if q.Location != nil {
		fields[fieldLat] = strconv.FormatFloat(q.Location.Lat, 'f', -1, 64)
		fields[fieldLon] = strconv.FormatFloat(q.Location.Lon, 'f', -1, 64)
	}
	return fields
}

func queryFromFields(fields map[string]string) (domain.RelayQuery, error) {
	q := domain.RelayQuery{
		QueryID:      fields[fieldQueryID],
		Kind:         domain.QueryKind(fields[fieldKind]),
		Text:         fields[fieldText],
		OriginDevice: fields[fieldOriginDevice],
		RelayDevice:  fields[fieldRelayDevice],
		State:        domain.QueryState(fields[fieldState]),
		Result:       fields[fieldResult],
		Error:        fields[fieldError],
	}
	if q.QueryID == "" {
		return domain.RelayQuery{}, fmt.Errorf("query record missing %s field", fieldQueryID)
	}

	if raw := fields[fieldCreatedAt]; raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domain.RelayQuery{}, fmt.Errorf("parse %s: %w", fieldCreatedAt, err)
		}
		q.CreatedAt = ts
	}
	if raw := fields[fieldCompletedAt]; raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domain.RelayQuery{}, fmt.Errorf("parse %s: %w", fieldCompletedAt, err)
		}
		q.CompletedAt = ts
	}

	latRaw, lonRaw := fields[fieldLat], fields[fieldLon]
	if latRaw != "" && lonRaw != "" {
		lat, err := strconv.ParseFloat(latRaw, 64)
		if err != nil {
			return domain.RelayQuery{}, fmt.Errorf("parse lat: %w", err)
		}
		lon, err := strconv.ParseFloat(lonRaw, 64)
		if err != nil {
			return domain.RelayQuery{}, fmt.Errorf("parse lon: %w", err)
		}
		q.Location = &domain.GeoPoint{Lat: lat, Lon: lon}
	}

	return q, nil
}
