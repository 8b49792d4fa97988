// internal/domain/models/assignment.go
package models

// AssignmentStatus is the lifecycle state of a locally held assignment.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentConfirmed AssignmentStatus = "confirmed"
	AssignmentRejected  AssignmentStatus = "rejected"
)

// IsValid reports whether s is one of the known statuses.
func (s AssignmentStatus) IsValid() bool {
	switch s {
	case AssignmentPending, AssignmentConfirmed, AssignmentRejected:
		return true
	}
	return false
}

// AssignmentRecord is the operator-side view of one customer assigned to one
// product.
//
// DisplayName, Email, Phone and Address are a snapshot of the customer taken
// when the assignment was made. They are not kept in sync with the directory.
//
// AssignedAt is a logical clock value, monotonic within a session; it is not
// wall-clock time.
type AssignmentRecord struct {
	CustomerID  string           `json:"customerId"`
	ProductID   string           `json:"productId"`
	DisplayName string           `json:"displayName"`
	Email       string           `json:"email"`
	Phone       string           `json:"phone,omitempty"`
	Address     string           `json:"address,omitempty"`
	Status      AssignmentStatus `json:"status"`
	AssignedAt  uint64           `json:"assignedAt"`
}

// NewAssignmentRecord builds a record for productID from a directory customer.
func NewAssignmentRecord(productID string, c Customer, status AssignmentStatus) AssignmentRecord {
	return AssignmentRecord{
		CustomerID:  c.ID,
		ProductID:   productID,
		DisplayName: c.Name,
		Email:       c.Email,
		Phone:       c.Phone,
		Address:     c.Address,
		Status:      status,
	}
}
