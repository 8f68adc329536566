package models

import "time"

// Status is the outcome class of a single CNPJ resolution
type Status string

// Result statuses. OK is the only one ever cached.
const (
	StatusOK            Status = "OK"
	StatusInvalido      Status = "INVALIDO"
	StatusNaoEncontrado Status = "NAO_ENCONTRADO"
	StatusRateLimit     Status = "RATE_LIMIT"
	StatusTimeout       Status = "TIMEOUT"
	StatusErro          Status = "ERRO"
)

// Retryable reports whether a status is considered transient
func (s Status) Retryable() bool {
	return s == StatusTimeout || s == StatusErro
}

// Result represents the resolution of one CNPJ
type Result struct {
	CNPJ            string `json:"cnpj" bson:"cnpj" example:"07526557011659"`
	Status          Status `json:"status" bson:"status" example:"OK"`
	SimplesNacional *bool  `json:"simples_nacional,omitempty" bson:"simples_nacional,omitempty" example:"true"`
	MEI             *bool  `json:"mei,omitempty" bson:"mei,omitempty" example:"false"`
	Erro            string `json:"erro,omitempty" bson:"erro,omitempty"`
}

// NewOKResult creates a successful result carrying both optant flags
func NewOKResult(cnpj string, simples, mei bool) Result {
	return Result{
		CNPJ:            cnpj,
		Status:          StatusOK,
		SimplesNacional: &simples,
		MEI:             &mei,
	}
}

// NewStatusResult creates a result without payload
func NewStatusResult(cnpj string, status Status) Result {
	return Result{CNPJ: cnpj, Status: status}
}

// NewErrorResult creates an ERRO result with its description
func NewErrorResult(cnpj, message string) Result {
	return Result{CNPJ: cnpj, Status: StatusErro, Erro: message}
}

// WithCNPJ returns a copy of the result reported under the given CNPJ
func (r Result) WithCNPJ(cnpj string) Result {
	r.CNPJ = cnpj
	return r
}

// CacheEntry is the persisted form of a successful lookup
type CacheEntry struct {
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
	Result    Result    `json:"result" bson:"result"`
}
