package domain

// ============================================================
// Customer
// ============================================================

// PersonType distinguishes CPF holders (pessoa física) from CNPJ holders
// (pessoa jurídica). It is derived from the document digit count only.
type PersonType string

const (
	PersonIndividual   PersonType = "pf"
	PersonOrganization PersonType = "pj"
)

// Address is the billing address collected in the registration step.
type Address struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	District   string `json:"district"`
	City       string `json:"city"`
	StateCode  string `json:"stateCode"`
	PostalCode string `json:"postalCode"`
}

// CustomerRecord is the validated registration data. It is built once from
// the registration form and never changes for the rest of the session.
type CustomerRecord struct {
	LegalName        string     `json:"legalName"`
	NationalID       string     `json:"nationalId"` // digits only
	PersonType       PersonType `json:"personType"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone"` // digits only
	OrganizationName string     `json:"organizationName,omitempty"`
	Address          Address    `json:"address"`
	Description      string     `json:"description,omitempty"`
}

// Registration is the result of a successful remote customer registration.
type Registration struct {
	LocalID  string `json:"customerId"`
	RemoteID string `json:"gatewayCustomerId"`
	Message  string `json:"message,omitempty"`
}
