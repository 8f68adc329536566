package registry

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingOptant means a success body did not carry both enrollment flags
var ErrMissingOptant = errors.New("registry response missing optant flag")

// OfficeResponse is the part of the registry payload this service reads
type OfficeResponse struct {
	Company *struct {
		Simples *Optant `json:"simples"`
		Simei   *Optant `json:"simei"`
	} `json:"company"`
}

// Optant is an enrollment flag of a simplified tax regime
type Optant struct {
	Optant *bool `json:"optant"`
}

// ParseOptants extracts the Simples Nacional and MEI flags from a success
// body. Both flags must be present and non-null.
func ParseOptants(body []byte) (simples, mei bool, err error) {
	var office OfficeResponse
	if err := json.Unmarshal(body, &office); err != nil {
		return false, false, fmt.Errorf("invalid registry response: %w", err)
	}

	if office.Company == nil {
		return false, false, fmt.Errorf("%w: company", ErrMissingOptant)
	}
	if office.Company.Simples == nil || office.Company.Simples.Optant == nil {
		return false, false, fmt.Errorf("%w: company.simples.optant", ErrMissingOptant)
	}
	if office.Company.Simei == nil || office.Company.Simei.Optant == nil {
		return false, false, fmt.Errorf("%w: company.simei.optant", ErrMissingOptant)
	}

	return *office.Company.Simples.Optant, *office.Company.Simei.Optant, nil
}
