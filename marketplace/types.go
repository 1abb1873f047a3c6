package marketplace

// Request and response schemas for the marketplace REST API. Every
// response is decoded into one of these and validated before any field
// is read, so a missing field is a decode error rather than a zero
// value silently flowing onward.

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token" validate:"required"`
}

// Property is the listing record as served by the API. Only the fields
// the reservation workflow reads carry validation; the rest ride along
// for callers composing views.
type Property struct {
	ID            string   `json:"id" validate:"required"`
	HostID        string   `json:"host_id"`
	Title         string   `json:"title"`
	Location      string   `json:"location"`
	PricePerNight float64  `json:"price_per_night" validate:"required,gt=0"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	Pictures      []string `json:"picture"`
}

type PaymentIntentRequest struct {
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
}

type PaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret" validate:"required"`
}

// BookingStatus values as persisted server-side.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

type BookingRequest struct {
	GuestID    string        `json:"guestId"`
	PropertyID string        `json:"propertyId"`
	CheckIn    string        `json:"checkIn"`  // ISO 8601
	CheckOut   string        `json:"checkOut"` // ISO 8601
	TotalPrice float64       `json:"totalPrice"`
	Status     BookingStatus `json:"status"`
}

type BookingResponse struct {
	ID         string        `json:"id" validate:"required"`
	GuestID    string        `json:"guestId"`
	PropertyID string        `json:"propertyId"`
	CheckIn    string        `json:"checkIn"`
	CheckOut   string        `json:"checkOut"`
	TotalPrice float64       `json:"totalPrice"`
	Status     BookingStatus `json:"status"`
}

type PaymentRequest struct {
	BookingID     string  `json:"bookingId"`
	GuestID       string  `json:"guestId"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"paymentMethod"`
	Status        string  `json:"status"`
}

type PaymentResponse struct {
	ID        string `json:"id" validate:"required"`
	BookingID string `json:"bookingId"`
	Status    string `json:"status"`
}

type bookingStatusPatch struct {
	Status BookingStatus `json:"status"`
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
