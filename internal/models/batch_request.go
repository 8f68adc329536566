package models

// BatchRequest represents a batch Simples Nacional consultation request
// @Description Lista de CNPJs (com ou sem formatação) a serem consultados em ordem
type BatchRequest struct {
	CNPJs []string `json:"cnpjs" binding:"required,min=1" example:"[\"07.526.557/0116-59\",\"11222333000181\"]"`
}
