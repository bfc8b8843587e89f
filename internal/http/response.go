package http

import (
	"time"

	"github.com/shopspring/decimal"

	"payload/internal/aggregate"
	"payload/internal/domain"
	"payload/internal/storage"
)

type UserResponse struct {
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	CreatedAt *string     `json:"created_at,omitempty"`
}

type SessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
	User      UserResponse `json:"user"`
}

type IndividualResponse struct {
	JobID           string `json:"job_id"`
	ParcelCount     int    `json:"parcel_count"`
	CollectionCount int    `json:"collection_count"`
}

type DailyResponse struct {
	JobIDs       []string `json:"job_ids"`
	TotalParcels int      `json:"total_parcels"`
}

type RecordResponse struct {
	ID              string              `json:"id"`
	UserID          string              `json:"user_id"`
	Date            string              `json:"date"`
	Kind            domain.RecordKind   `json:"kind"`
	Individual      *IndividualResponse `json:"individual,omitempty"`
	Daily           *DailyResponse      `json:"daily,omitempty"`
	Photos          []string            `json:"photos"`
	CalculatedValue string              `json:"calculated_value"`
	CreatedAt       string              `json:"created_at"`
	DroppedPhotos   int                 `json:"dropped_photos,omitempty"`
}

type MonthGroupResponse struct {
	MonthKey string           `json:"month"`
	Label    string           `json:"label"`
	Subtotal string           `json:"subtotal"`
	Items    []RecordResponse `json:"items"`
}

type UserSummaryResponse struct {
	UserID         string `json:"user_id"`
	Count          int    `json:"count"`
	Total          string `json:"total"`
	LastActiveDate string `json:"last_active_date"`
}

type DashboardResponse struct {
	MonthKey string           `json:"month"`
	Label    string           `json:"label"`
	Total    string           `json:"total"`
	Count    int              `json:"count"`
	Average  string           `json:"average"`
	Recent   []RecordResponse `json:"recent"`
}

type OverviewResponse struct {
	MonthKey    string                `json:"month"`
	Label       string                `json:"label"`
	TotalPayout string                `json:"total_payout"`
	Couriers    int                   `json:"couriers"`
	Users       []UserSummaryResponse `json:"users"`
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func userToResponse(user domain.User) UserResponse {
	resp := UserResponse{Username: user.Username, Role: user.Role}
	if !user.CreatedAt.IsZero() {
		v := user.CreatedAt.UTC().Format(time.RFC3339)
		resp.CreatedAt = &v
	}
	return resp
}

func recordToResponse(record domain.DeliveryRecord) RecordResponse {
	resp := RecordResponse{
		ID:              record.ID,
		UserID:          record.UserID,
		Date:            record.Date,
		Kind:            record.Kind(),
		Photos:          make([]string, len(record.Photos)),
		CalculatedValue: money(record.CalculatedValue),
		CreatedAt:       record.CreatedAt.UTC().Format(time.RFC3339),
	}
	switch p := record.Payload.(type) {
	case domain.Individual:
		resp.Individual = &IndividualResponse{
			JobID:           p.JobID,
			ParcelCount:     p.ParcelCount,
			CollectionCount: p.CollectionCount,
		}
	case domain.Daily:
		resp.Daily = &DailyResponse{
			JobIDs:       append([]string(nil), p.JobIDs...),
			TotalParcels: p.TotalParcels,
		}
	}
	for i := range record.Photos {
		resp.Photos[i] = string(record.Photos[i])
	}
	return resp
}

func recordsToResponse(records []domain.DeliveryRecord) []RecordResponse {
	resp := make([]RecordResponse, len(records))
	for i := range records {
		resp[i] = recordToResponse(records[i])
	}
	return resp
}

func groupsToResponse(groups []aggregate.MonthGroup) []MonthGroupResponse {
	resp := make([]MonthGroupResponse, len(groups))
	for i, g := range groups {
		resp[i] = MonthGroupResponse{
			MonthKey: g.MonthKey,
			Label:    g.Label,
			Subtotal: money(g.Subtotal),
			Items:    recordsToResponse(g.Items),
		}
	}
	return resp
}

func summaryToResponse(s aggregate.UserSummary) UserSummaryResponse {
	return UserSummaryResponse{
		UserID:         s.UserID,
		Count:          s.Count,
		Total:          money(s.Total),
		LastActiveDate: s.LastActiveDate,
	}
}

func summariesToResponse(summaries []aggregate.UserSummary) []UserSummaryResponse {
	resp := make([]UserSummaryResponse, len(summaries))
	for i := range summaries {
		resp[i] = summaryToResponse(summaries[i])
	}
	return resp
}

func dashboardToResponse(d aggregate.DashboardSummary) DashboardResponse {
	return DashboardResponse{
		MonthKey: d.MonthKey,
		Label:    aggregate.MonthLabel(d.MonthKey),
		Total:    money(d.Total),
		Count:    d.Count,
		Average:  money(d.Average),
		Recent:   recordsToResponse(d.Recent),
	}
}

func overviewToResponse(o aggregate.AdminOverview) OverviewResponse {
	return OverviewResponse{
		MonthKey:    o.MonthKey,
		Label:       aggregate.MonthLabel(o.MonthKey),
		TotalPayout: money(o.TotalPayout),
		Couriers:    o.Couriers,
		Users:       summariesToResponse(o.Users),
	}
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
