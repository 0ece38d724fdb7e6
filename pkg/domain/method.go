package domain

import (
	dErrors "loankyc/pkg/domain-errors"
)

// MethodID names one of the fixed verification methods an applicant can use.
type MethodID string

const (
	MethodDocumentOTP   MethodID = "document-otp"
	MethodTaxID         MethodID = "tax-id"
	MethodVideo         MethodID = "video"
	MethodOfflineUpload MethodID = "offline-upload"
	MethodRegistryFetch MethodID = "registry-fetch"
)

// AllMethods lists the method set in presentation order.
var AllMethods = []MethodID{
	MethodDocumentOTP,
	MethodTaxID,
	MethodVideo,
	MethodOfflineUpload,
	MethodRegistryFetch,
}

// ParseMethodID creates a MethodID from a string, rejecting anything outside the method set.
func ParseMethodID(s string) (MethodID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeUnknownMethod, "method cannot be empty")
	}
	m := MethodID(s)
	if !m.IsValid() {
		return "", dErrors.New(dErrors.CodeUnknownMethod, "unknown verification method: "+s)
	}
	return m, nil
}

// IsValid checks if the method is one of the supported verification methods.
func (m MethodID) IsValid() bool {
	switch m {
	case MethodDocumentOTP, MethodTaxID, MethodVideo, MethodOfflineUpload, MethodRegistryFetch:
		return true
	}
	return false
}

func (m MethodID) String() string {
	return string(m)
}
