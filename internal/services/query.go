package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nexconsult/simples-nacional/internal/models"
	"github.com/nexconsult/simples-nacional/internal/registry"
	"github.com/sirupsen/logrus"
)

// QueryService turns registry exchanges into results
type QueryService struct {
	fetcher FetcherInterface
	backoff time.Duration
	sleep   SleepFunc
	logger  *logrus.Logger
}

// NewQueryService creates a query service that waits backoff before its single retry
func NewQueryService(fetcher FetcherInterface, backoff time.Duration, sleep SleepFunc, logger *logrus.Logger) *QueryService {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &QueryService{
		fetcher: fetcher,
		backoff: backoff,
		sleep:   sleep,
		logger:  logger,
	}
}

// Query performs one registry lookup and classifies the outcome
func (s *QueryService) Query(ctx context.Context, cnpj string) models.Result {
	resp, err := s.fetcher.Fetch(ctx, cnpj)
	if err != nil {
		if errors.Is(err, registry.ErrTimeout) {
			return models.NewStatusResult(cnpj, models.StatusTimeout)
		}
		return models.NewErrorResult(cnpj, err.Error())
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.NewStatusResult(cnpj, models.StatusNaoEncontrado)
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.NewStatusResult(cnpj, models.StatusRateLimit)
	case !resp.Success():
		return models.NewErrorResult(cnpj, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	simples, mei, err := registry.ParseOptants(resp.Body)
	if err != nil {
		return models.NewErrorResult(cnpj, err.Error())
	}

	return models.NewOKResult(cnpj, simples, mei)
}

// QueryWithRetry calls Query and, when the outcome is TIMEOUT or ERRO, waits
// the backoff and tries exactly once more. The second outcome is final.
func (s *QueryService) QueryWithRetry(ctx context.Context, cnpj string) models.Result {
	result := s.Query(ctx, cnpj)
	if !result.Status.Retryable() {
		return result
	}

	s.logger.WithFields(logrus.Fields{
		"cnpj":    cnpj,
		"status":  result.Status,
		"erro":    result.Erro,
		"backoff": s.backoff,
	}).Warn("Transient registry failure, retrying once")

	s.sleep(s.backoff)

	retry := s.Query(ctx, cnpj)
	if retry.Status.Retryable() {
		s.logger.WithFields(logrus.Fields{
			"cnpj":   cnpj,
			"status": retry.Status,
			"erro":   retry.Erro,
		}).Error("Registry retry failed")
	}

	return retry
}
