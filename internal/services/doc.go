// Package services defines the error taxonomy shared by the conversion
// pipeline and the external tool wrappers beneath it.
package services
