package gateway

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Wire types of the backend proxy. Field names follow the proxy contract,
// which forwards them to the payment gateway.

const (
	wireMethodPix  = "pix"
	wireMethodCard = "cartao"
)

type configResponse struct {
	Success      bool            `json:"success"`
	Valor        decimal.Decimal `json:"valor"`
	Destinatario string          `json:"destinatario"`
	Descricao    string          `json:"descricao,omitempty"`
	Message      string          `json:"message,omitempty"`
}

type customerRequest struct {
	Slug       string `json:"slug"`
	Nome       string `json:"nome"`
	CpfCnpj    string `json:"cpfCnpj"`
	TipoPessoa string `json:"tipoPessoa"`
	Email      string `json:"email"`
	Whatsapp   string `json:"whatsapp"`
	Companhia  string `json:"companhia,omitempty"`
	Rua        string `json:"rua"`
	Numero     string `json:"numero"`
	Bairro     string `json:"bairro"`
	Cidade     string `json:"cidade"`
	UF         string `json:"uf"`
	CEP        string `json:"cep"`
	Descricao  string `json:"descricao,omitempty"`
}

type customerResponse struct {
	Success         bool   `json:"success"`
	CustomerID      string `json:"customerId"`
	AsaasCustomerID string `json:"asaasCustomerId"`
	Message         string `json:"message,omitempty"`
}

type cardPayload struct {
	Numero   string `json:"numero"`
	Nome     string `json:"nome"`
	Validade string `json:"validade"`
	CVV      string `json:"cvv"`
}

type chargeRequest struct {
	CustomerID      string       `json:"customerId"`
	AsaasCustomerID string       `json:"asaasCustomerId"`
	Valor           json.Number  `json:"valor"`
	Metodo          string       `json:"metodo"`
	Descricao       string       `json:"descricao,omitempty"`
	Cartao          *cardPayload `json:"cartao,omitempty"`
}

// chargeResponse is shared by charge creation and status polling.
type chargeResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transactionId,omitempty"`
	PaymentID     string `json:"paymentId,omitempty"`
	PixCode       string `json:"pixCode,omitempty"`
	PixQrCode     string `json:"pixQrCode,omitempty"`
	RedirectURL   string `json:"redirectUrl,omitempty"`
	Message       string `json:"message,omitempty"`
}

type recordRequest struct {
	Slug            string      `json:"slug,omitempty"`
	TransactionID   string      `json:"transactionId"`
	PaymentID       string      `json:"paymentId,omitempty"`
	CustomerID      string      `json:"customerId"`
	AsaasCustomerID string      `json:"asaasCustomerId,omitempty"`
	Valor           json.Number `json:"valor"`
	Metodo          string      `json:"metodo"`
	Status          string      `json:"status"`
	PixCode         string      `json:"pixCode,omitempty"`
	PixQrCode       string      `json:"pixQrCode,omitempty"`
}

type statusUpdateRequest struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
}

type ackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func amountNumber(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}
