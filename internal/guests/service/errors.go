package service

// Response messages. Handlers reuse the exported ones for checks they run
// before the service is reached.
const (
	MsgInvalidBody = "invalid request body"
	MsgInvalidID   = "invalid guest id"

	msgMissingAddFields    = "missing required body parameter (name, lastname, phoneNumber)"
	msgMissingCurrentPhone = "missing required body parameter currentPhoneNumber"
	msgMissingEmailParam   = "missing query parameter email"
	msgMissingNumberParam  = "missing query parameter number"
	msgEmptyName           = "name or lastname is an empty string"
	msgInvalidPhoneFormat  = "invalid phone number format, start with +"
	msgInvalidPhone        = "invalid phone number"
	msgInvalidEmail        = "invalid email"
	msgDuplicatePhone      = "guest with this phone number already exists"
	msgDuplicateEmail      = "guest with this email already exists"
	msgCurrentNotFound     = "guest with this phone number not found"
	msgEmailNotFound       = "guest with this email not found"
	msgNumberNotFound      = "guest with this number not found, pass the number without +"
	msgIDNotFound          = "guest with this id not found"
	msgInternal            = "internal server error"

	ackSuccess = "success"
)
