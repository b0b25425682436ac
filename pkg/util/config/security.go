package config

// Security holds the file locations of the daemon tls material.
type Security struct {
	// CertsDir is the directory which holds the certificate files.
	CertsDir string

	// RootCAPem is the root CA certificate file name.
	RootCAPem string
	// ServerKey is the server private key file name.
	ServerKey string
	// ServerCrt is the server certificate file name.
	ServerCrt string
}
