package app

import (
	"orderdesk/internal/core"
)

type OrderResult struct {
	Order *core.Order `json:"order"`
}

type OrderListResult struct {
	Orders []core.Order `json:"orders"`
}

type ProductListResult struct {
	Products []core.Product `json:"products"`
}

type LandingResult struct {
	Product *core.Product       `json:"product"`
	Landing *core.LandingConfig `json:"landing,omitempty"`
}

// BatchResult carries one batch plus its computed operational warnings.
type BatchResult struct {
	Batch    *core.Batch         `json:"batch"`
	Warnings []core.BatchWarning `json:"warnings,omitempty"`
}

type BatchListResult struct {
	Batches  []core.Batch                  `json:"batches"`
	Warnings map[int64][]core.BatchWarning `json:"warnings,omitempty"`
}

// BatchDetailResult is the batch detail screen: the batch, its member orders,
// and the frozen item snapshot the documents render from.
type BatchDetailResult struct {
	Batch    *core.Batch              `json:"batch"`
	Warnings []core.BatchWarning      `json:"warnings,omitempty"`
	Orders   []core.Order             `json:"orders"`
	Snapshot []core.BatchSnapshotItem `json:"snapshot"`
}

// DocumentResult is a rendered document ready to stream to the client.
type DocumentResult struct {
	Filename    string      `json:"filename"`
	ContentType string      `json:"content_type"`
	Data        []byte      `json:"-"`
	Batch       *core.Batch `json:"batch,omitempty"`
}
