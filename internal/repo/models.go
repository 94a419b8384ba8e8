package repo

import (
	"encoding/json"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

const (
	UserStatusActive    = "ACTIVE"
	UserStatusSuspended = "SUSPENDED"
)

const (
	RoleOwner            = "owner"
	RoleAdmin            = "admin"
	RoleDoctor           = "doctor"
	RoleReceptionist     = "receptionist"
	RoleAccountant       = "accountant"
	RoleInsuranceOfficer = "insurance_officer"
)

const (
	PatientStatusActive   = "active"
	PatientStatusArchived = "archived"
)

const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
)

const (
	QueueWaiting   = "waiting"
	QueueConfirmed = "confirmed"
	QueueInSession = "in_session"
	QueueDone      = "done"
	QueueCancelled = "cancelled"
)

const (
	VisitOpen   = "open"
	VisitClosed = "closed"
)

const (
	InvoiceDraft         = "draft"
	InvoiceIssued        = "issued"
	InvoicePartiallyPaid = "partially_paid"
	InvoicePaid          = "paid"
	InvoiceVoid          = "void"
)

const (
	PaymentPending = "pending"
	PaymentSuccess = "success"
	PaymentFailed  = "failed"
)

const (
	PaymentMethodCash      = "cash"
	PaymentMethodCard      = "card"
	PaymentMethodTransfer  = "transfer"
	PaymentMethodOnline    = "online"
	PaymentMethodInsurance = "insurance"
)

const (
	InsurancePending  = "pending"
	InsuranceApproved = "approved"
	InsuranceRejected = "rejected"
)

const (
	ChannelWhatsApp = "whatsapp"
	ChannelSlack    = "slack"

	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	MessageQueued    = "queued"
	MessageSent      = "sent"
	MessageDelivered = "delivered"
	MessageRead      = "read"
	MessageFailed    = "failed"
	MessageReceived  = "received"
)

type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	Phone        *string    `json:"phone,omitempty"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Status       string     `json:"status"`
	IsSuperadmin bool       `json:"is_superadmin"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Center struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Phone     *string   `json:"phone,omitempty"`
	Address   *string   `json:"address,omitempty"`
	Timezone  string    `json:"timezone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CenterMember struct {
	ID        uuid.UUID `json:"id"`
	CenterID  uuid.UUID `json:"center_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	Specialty *string   `json:"specialty,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Filled by list queries that join users / centers.
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Email      string `json:"email,omitempty"`
	CenterName string `json:"center_name,omitempty"`
}

type Patient struct {
	ID                uuid.UUID  `json:"id"`
	CenterID          uuid.UUID  `json:"center_id"`
	FileNumber        string     `json:"file_number"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	NationalID        *string    `json:"-"` // sealed
	NationalIDHash    *string    `json:"-"`
	Phone             *string    `json:"phone,omitempty"`
	Email             *string    `json:"email,omitempty"`
	BirthDate         *time.Time `json:"birth_date,omitempty"`
	Gender            *string    `json:"gender,omitempty"`
	InsuranceProvider *string    `json:"insurance_provider,omitempty"`
	InsuranceNumber   *string    `json:"insurance_number,omitempty"`
	UsesInsurance     bool       `json:"uses_insurance"`
	Status            string     `json:"status"`
	Notes             *string    `json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type Appointment struct {
	ID           uuid.UUID `json:"id"`
	CenterID     uuid.UUID `json:"center_id"`
	PatientID    uuid.UUID `json:"patient_id"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Status       string    `json:"status"`
	Reason       *string   `json:"reason,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
	CancelReason *string   `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type QueueItem struct {
	ID            uuid.UUID  `json:"id"`
	CenterID      uuid.UUID  `json:"center_id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	DoctorID      *uuid.UUID `json:"doctor_id,omitempty"`
	QueueDate     time.Time  `json:"queue_date"`
	QueueNumber   int        `json:"queue_number"`
	Status        string     `json:"status"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedBy   *uuid.UUID `json:"confirmed_by,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type Visit struct {
	ID             uuid.UUID  `json:"id"`
	CenterID       uuid.UUID  `json:"center_id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	DoctorID       uuid.UUID  `json:"doctor_id"`
	QueueItemID    *uuid.UUID `json:"queue_item_id,omitempty"`
	AppointmentID  *uuid.UUID `json:"appointment_id,omitempty"`
	Status         string     `json:"status"`
	ChiefComplaint *string    `json:"chief_complaint,omitempty"`
	Diagnosis      *string    `json:"diagnosis,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type Invoice struct {
	ID             uuid.UUID      `json:"id"`
	CenterID       uuid.UUID      `json:"center_id"`
	PatientID      uuid.UUID      `json:"patient_id"`
	QueueItemID    *uuid.UUID     `json:"queue_item_id,omitempty"`
	VisitID        *uuid.UUID     `json:"visit_id,omitempty"`
	Number         string         `json:"number"`
	Status         string         `json:"status"`
	Subtotal       int64          `json:"subtotal"`
	Discount       int64          `json:"discount"`
	InsuranceShare int64          `json:"insurance_share"`
	Total          int64          `json:"total"`
	PaidAmount     int64          `json:"paid_amount"`
	Currency       string         `json:"currency"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Items          []*InvoiceItem `json:"items,omitempty"`
}

// Outstanding is the unpaid part of the invoice; void invoices owe nothing.
func (i *Invoice) Outstanding() int64 {
	if i.Status == InvoiceVoid || i.Status == InvoiceDraft {
		return 0
	}
	if o := i.Total - i.PaidAmount; o > 0 {
		return o
	}
	return 0
}

type InvoiceItem struct {
	ID          uuid.UUID `json:"id"`
	InvoiceID   uuid.UUID `json:"invoice_id"`
	Description string    `json:"description"`
	Quantity    int       `json:"quantity"`
	UnitPrice   int64     `json:"unit_price"`
	Amount      int64     `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

type Payment struct {
	ID               uuid.UUID  `json:"id"`
	CenterID         uuid.UUID  `json:"center_id"`
	InvoiceID        uuid.UUID  `json:"invoice_id"`
	Amount           int64      `json:"amount"`
	Method           string     `json:"method"`
	Reference        *string    `json:"reference,omitempty"`
	GatewayAuthority *string    `json:"gateway_authority,omitempty"`
	Status           string     `json:"status"`
	ReceivedBy       *uuid.UUID `json:"received_by,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type InsuranceRequest struct {
	ID                uuid.UUID  `json:"id"`
	CenterID          uuid.UUID  `json:"center_id"`
	PatientID         uuid.UUID  `json:"patient_id"`
	QueueItemID       *uuid.UUID `json:"queue_item_id,omitempty"`
	Provider          string     `json:"provider"`
	PolicyNumber      *string    `json:"policy_number,omitempty"`
	Status            string     `json:"status"`
	ApprovedAmount    int64      `json:"approved_amount"`
	RequiredDocuments []string   `json:"required_documents"`
	ReviewedBy        *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time `json:"reviewed_at,omitempty"`
	ReviewNotes       *string    `json:"review_notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type InsuranceDocument struct {
	ID          uuid.UUID  `json:"id"`
	CenterID    uuid.UUID  `json:"center_id"`
	RequestID   uuid.UUID  `json:"insurance_request_id"`
	DocType     string     `json:"doc_type"`
	FileKey     string     `json:"-"`
	FileName    string     `json:"file_name"`
	ContentType string     `json:"content_type"`
	Size        int64      `json:"size"`
	UploadedBy  *uuid.UUID `json:"uploaded_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type BusinessRule struct {
	ID          uuid.UUID       `json:"id"`
	CenterID    uuid.UUID       `json:"center_id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Trigger     string          `json:"trigger"`
	Match       string          `json:"match"`
	Conditions  json.RawMessage `json:"conditions"`
	Expression  *string         `json:"expression,omitempty"`
	Action      json.RawMessage `json:"action"`
	Priority    int             `json:"priority"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Workflow struct {
	ID        uuid.UUID       `json:"id"`
	CenterID  uuid.UUID       `json:"center_id"`
	Name      string          `json:"name"`
	Trigger   string          `json:"trigger"`
	Steps     json.RawMessage `json:"steps"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Message struct {
	ID          uuid.UUID  `json:"id"`
	CenterID    *uuid.UUID `json:"center_id,omitempty"`
	PatientID   *uuid.UUID `json:"patient_id,omitempty"`
	Channel     string     `json:"channel"`
	Direction   string     `json:"direction"`
	FromAddress string     `json:"from_address"`
	ToAddress   string     `json:"to_address"`
	Body        string     `json:"body"`
	Status      string     `json:"status"`
	ExternalID  *string    `json:"external_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type WebhookEvent struct {
	ID             uuid.UUID       `json:"id"`
	Provider       string          `json:"provider"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	SignatureValid bool            `json:"signature_valid"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type Notification struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	CenterID  *uuid.UUID      `json:"center_id,omitempty"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Data      json.RawMessage `json:"data,omitempty"`
	IsRead    bool            `json:"is_read"`
	CreatedAt time.Time       `json:"created_at"`
}

// Page is a limit/offset window.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) apply(sel *entsql.Selector) *entsql.Selector {
	if p.Limit > 0 {
		sel.Limit(p.Limit)
	}
	if p.Offset > 0 {
		sel.Offset(p.Offset)
	}
	return sel
}
