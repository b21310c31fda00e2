package models

// PasswordlessDevice is one OTP/magic-link device flow, keyed by the hash of
// its device id. Either Email or PhoneNumber identifies the contact point.
type PasswordlessDevice struct {
	DeviceIDHash   string
	Email          *string
	PhoneNumber    *string
	LinkCodeSalt   string
	FailedAttempts int
}

// PasswordlessCode is one active code of a device. LinkCodeHash is unique
// across all devices. Codes disappear with their device.
type PasswordlessCode struct {
	CodeID       string
	DeviceIDHash string
	LinkCodeHash string
	CreatedAt    int64
}
