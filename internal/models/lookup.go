package models

// Certification is a course or exam credential, verified against its issuing
// platform where the platform allows it.
type Certification struct {
	Platform        string `json:"platform" db:"platform"`
	CertificateName string `json:"certificate_name" db:"certificate_name"`
	Issuer          string `json:"issuer" db:"issuer"`
	CompletionDate  string `json:"completion_date" db:"completion_date"`
	CredentialID    string `json:"credential_id" db:"credential_id"`
	CredentialURL   string `json:"credential_url" db:"credential_url"`
	Verified        bool   `json:"verified" db:"verified"`
	Notes           string `json:"notes,omitempty" db:"notes"`
}

// Skill is an entry from the curated vocabulary or the external taxonomy.
type Skill struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
