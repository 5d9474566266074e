package checkout

import (
	"strings"

	"github.com/boddenberg/paysimples-checkout-go/internal/domain"
	"github.com/boddenberg/paysimples-checkout-go/internal/formatter"
)

// RegistrationForm is the raw registration step input. Fields may arrive
// masked or unmasked.
type RegistrationForm struct {
	LegalName        string `json:"legalName"`
	NationalID       string `json:"nationalId"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	OrganizationName string `json:"organizationName,omitempty"`
	Street           string `json:"street"`
	Number           string `json:"number"`
	District         string `json:"district"`
	City             string `json:"city"`
	StateCode        string `json:"stateCode"`
	PostalCode       string `json:"postalCode"`
	Description      string `json:"description,omitempty"`
}

// Validate checks every field and reports all failures at once. On success
// it returns the normalized, immutable customer record.
func (f RegistrationForm) Validate() (domain.CustomerRecord, error) {
	var errs domain.ErrValidationSet

	name := strings.TrimSpace(f.LegalName)
	switch {
	case name == "":
		errs.Add("legalName", "required", "Nome é obrigatório")
	case len([]rune(name)) < 3:
		errs.Add("legalName", "too_short", "Nome deve ter pelo menos 3 caracteres")
	}

	personType := formatter.DetectPersonType(f.NationalID)
	if !formatter.ValidateDocument(f.NationalID) {
		if personType == domain.PersonOrganization {
			errs.Add("nationalId", "invalid_cnpj", "CNPJ inválido")
		} else {
			errs.Add("nationalId", "invalid_cpf", "CPF inválido")
		}
	}

	email := strings.TrimSpace(f.Email)
	if !formatter.ValidateEmail(email) {
		errs.Add("email", "invalid_email", "E-mail inválido")
	}
	if !formatter.ValidatePhone(f.Phone) {
		errs.Add("phone", "invalid_phone", "WhatsApp inválido")
	}

	required := []struct {
		field, value, message string
	}{
		{"street", f.Street, "Rua é obrigatória"},
		{"number", f.Number, "Número é obrigatório"},
		{"district", f.District, "Bairro é obrigatório"},
		{"city", f.City, "Cidade é obrigatória"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs.Add(r.field, "required", r.message)
		}
	}

	uf := strings.ToUpper(strings.TrimSpace(f.StateCode))
	switch {
	case uf == "":
		errs.Add("stateCode", "required", "UF é obrigatório")
	case !formatter.ValidateStateCode(uf):
		errs.Add("stateCode", "invalid_state", "UF inválida")
	}

	if !formatter.ValidatePostalCode(f.PostalCode) {
		errs.Add("postalCode", "invalid_postal_code", "CEP inválido")
	}

	if err := errs.ErrOrNil(); err != nil {
		return domain.CustomerRecord{}, err
	}

	return domain.CustomerRecord{
		LegalName:        name,
		NationalID:       formatter.Digits(f.NationalID),
		PersonType:       personType,
		Email:            email,
		Phone:            formatter.Digits(f.Phone),
		OrganizationName: strings.TrimSpace(f.OrganizationName),
		Address: domain.Address{
			Street:     strings.TrimSpace(f.Street),
			Number:     strings.TrimSpace(f.Number),
			District:   strings.TrimSpace(f.District),
			City:       strings.TrimSpace(f.City),
			StateCode:  uf,
			PostalCode: formatter.Digits(f.PostalCode),
		},
		Description: strings.TrimSpace(f.Description),
	}, nil
}

// CardForm is the raw card submission input.
type CardForm struct {
	Number       string `json:"number"`
	HolderName   string `json:"holderName"`
	Expiry       string `json:"expiry"`
	SecurityCode string `json:"securityCode"`
}

// Validate stops at the first violation, in form order.
func (f CardForm) Validate() (domain.CardDetails, error) {
	number := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '.' {
			return -1
		}
		return r
	}, f.Number)
	if len(number) != 16 || formatter.Digits(number) != number {
		return domain.CardDetails{}, &domain.ErrValidation{Field: "number", Code: "invalid_card_number", Message: "Número do cartão inválido"}
	}

	holder := strings.TrimSpace(f.HolderName)
	if holder == "" {
		return domain.CardDetails{}, &domain.ErrValidation{Field: "holderName", Code: "required", Message: "Nome no cartão é obrigatório"}
	}

	if len(f.Expiry) != 5 || f.Expiry[2] != '/' || len(formatter.Digits(f.Expiry)) != 4 {
		return domain.CardDetails{}, &domain.ErrValidation{Field: "expiry", Code: "invalid_expiry", Message: "Validade inválida"}
	}

	cvv := formatter.Digits(f.SecurityCode)
	if len(cvv) < 3 || len(cvv) > 4 || cvv != f.SecurityCode {
		return domain.CardDetails{}, &domain.ErrValidation{Field: "securityCode", Code: "invalid_cvv", Message: "CVV inválido"}
	}

	return domain.CardDetails{
		Number:       number,
		HolderName:   holder,
		Expiry:       f.Expiry,
		SecurityCode: cvv,
	}, nil
}
