package httpapi

import (
	"encoding/json"
	"time"

	"github.com/latchflow/latchflow/internal/model"
)

// bundleDTO is the wire shape for a model.Bundle.
type bundleDTO struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Downloadable bool      `json:"downloadable"`
	BundleDigest string    `json:"bundleDigest"`
	IsEnabled    bool      `json:"isEnabled"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func newBundleDTO(b model.Bundle) bundleDTO {
	return bundleDTO{
		ID:           b.ID,
		Name:         b.Name,
		Description:  b.Description,
		Downloadable: b.Downloadable(),
		BundleDigest: b.BundleDigest,
		IsEnabled:    b.IsEnabled,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

type bundleObjectDTO struct {
	ID        string `json:"id"`
	BundleID  string `json:"bundleId"`
	FileID    string `json:"fileId"`
	SortOrder int    `json:"sortOrder"`
	Required  bool   `json:"required"`
	IsEnabled bool   `json:"isEnabled"`
}

func newBundleObjectDTO(o model.BundleObject) bundleObjectDTO {
	return bundleObjectDTO{
		ID: o.ID, BundleID: o.BundleID, FileID: o.FileID,
		SortOrder: o.SortOrder, Required: o.Required, IsEnabled: o.IsEnabled,
	}
}

type fileDTO struct {
	ID          string          `json:"id"`
	Key         string          `json:"key"`
	Size        int64           `json:"size"`
	ContentType string          `json:"contentType"`
	ContentHash string          `json:"contentHash"`
	ETag        string          `json:"etag"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

func newFileDTO(f model.File) fileDTO {
	return fileDTO{
		ID: f.ID, Key: f.Key, Size: f.Size, ContentType: f.ContentType,
		ContentHash: f.ContentHash, ETag: f.ETag, Metadata: f.Metadata,
	}
}

type recipientDTO struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	IsEnabled bool   `json:"isEnabled"`
}

func newRecipientDTO(r model.Recipient) recipientDTO {
	return recipientDTO{ID: r.ID, Email: r.Email, Name: r.Name, IsEnabled: r.IsEnabled}
}

type assignmentDTO struct {
	ID              string     `json:"id"`
	BundleID        string     `json:"bundleId"`
	RecipientID     string     `json:"recipientId"`
	IsEnabled       bool       `json:"isEnabled"`
	MaxDownloads    *int       `json:"maxDownloads,omitempty"`
	CooldownSeconds *int       `json:"cooldownSeconds,omitempty"`
	LastDownloadAt  *time.Time `json:"lastDownloadAt,omitempty"`
	VerificationMet bool       `json:"verificationMet"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func newAssignmentDTO(a model.BundleAssignment) assignmentDTO {
	return assignmentDTO{
		ID: a.ID, BundleID: a.BundleID, RecipientID: a.RecipientID, IsEnabled: a.IsEnabled,
		MaxDownloads: a.MaxDownloads, CooldownSeconds: a.CooldownSeconds,
		LastDownloadAt: a.LastDownloadAt, VerificationMet: a.VerificationMet, CreatedAt: a.CreatedAt,
	}
}

// assignmentSummaryDTO is the §3 extension AssignmentSummary projection
// the portal's "my bundles" view uses instead of the raw assignment row.
type assignmentSummaryDTO struct {
	assignmentDTO
	Used              int  `json:"used"`
	Remaining         *int `json:"remaining,omitempty"`
	CooldownRemaining int  `json:"cooldownRemainingSeconds"`
}

func newAssignmentSummaryDTO(a model.BundleAssignment, used int, now time.Time) assignmentSummaryDTO {
	summary := assignmentSummaryDTO{assignmentDTO: newAssignmentDTO(a), Used: used}
	if a.MaxDownloads != nil {
		remaining := *a.MaxDownloads - used
		if remaining < 0 {
			remaining = 0
		}
		summary.Remaining = &remaining
	}
	if a.CooldownSeconds != nil && a.LastDownloadAt != nil {
		readyAt := a.LastDownloadAt.Add(time.Duration(*a.CooldownSeconds) * time.Second)
		if remaining := readyAt.Sub(now); remaining > 0 {
			summary.CooldownRemaining = int(remaining.Seconds())
		}
	}
	return summary
}
