package formdata

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DataUpdate is an immutable, identified, timestamped capture of one JSON
// document. The ID is independent of the parent entity so later snapshots
// and patches can reference "the form data as it was at update X" without
// ambiguity.
type DataUpdate struct {
	ID        uuid.UUID
	Data      *Wrapper
	CreatedAt time.Time
}

// NewDataUpdate captures a document under a fresh identity.
func NewDataUpdate(id uuid.UUID, raw string, createdAt time.Time) *DataUpdate {
	return &DataUpdate{ID: id, Data: NewWrapper(raw), CreatedAt: createdAt}
}

// WithData returns a copy of the update holding a replacement document but
// the same identity and timestamp. Used by the patch engine, which rewrites
// document text in place of an existing update.
func (u *DataUpdate) WithData(raw string) *DataUpdate {
	return &DataUpdate{ID: u.ID, Data: NewWrapper(raw), CreatedAt: u.CreatedAt}
}

type dataUpdateJSON struct {
	ID        uuid.UUID `json:"id"`
	Data      string    `json:"data"`
	CreatedAt time.Time `json:"createdTimestamp"`
}

// MarshalJSON serializes the update with its raw document text.
func (u *DataUpdate) MarshalJSON() ([]byte, error) {
	raw := ""
	if u.Data != nil {
		raw = u.Data.Raw()
	}
	return json.Marshal(dataUpdateJSON{ID: u.ID, Data: raw, CreatedAt: u.CreatedAt})
}

// UnmarshalJSON restores the update, re-wrapping the document lazily.
func (u *DataUpdate) UnmarshalJSON(data []byte) error {
	var dto dataUpdateJSON
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	u.ID = dto.ID
	u.Data = NewWrapper(dto.Data)
	u.CreatedAt = dto.CreatedAt
	return nil
}

// CustomerDetails identifies the customer a quote or claim belongs to.
type CustomerDetails struct {
	ID           uuid.UUID `json:"id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	AddressLine1 string    `json:"addressLine1,omitempty"`
	Suburb       string    `json:"suburb,omitempty"`
	State        string    `json:"state,omitempty"`
	Postcode     string    `json:"postcode,omitempty"`
}

// QuoteDataSnapshot is an immutable bundle of the three data updates
// captured atomically at a significant transition (e.g. policy issuance).
// It freezes exactly what the customer agreed to.
type QuoteDataSnapshot struct {
	FormData          *DataUpdate      `json:"formData,omitempty"`
	CalculationResult *DataUpdate      `json:"calculationResult,omitempty"`
	CustomerDetails   *CustomerDetails `json:"customerDetails,omitempty"`
}
