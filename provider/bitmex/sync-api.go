package bitmex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spooky-finn/go-bitmex-feed/domain"
)

const defaultRestEndpoint = "https://www.bitmex.com/api/v1"

// BitmexSyncAPI is the request/response side of the venue: the active
// instrument lookup used to validate configuration before streaming begins.
type BitmexSyncAPI struct {
	endpoint   string
	httpClient *http.Client
}

func NewBitmexSyncAPI(endpoint string) *BitmexSyncAPI {
	if endpoint == "" {
		endpoint = defaultRestEndpoint
	}
	return &BitmexSyncAPI{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type instrumentInfo struct {
	Symbol string `json:"symbol"`
}

// ActiveSymbols fetches the currently tradable symbols.
func (api *BitmexSyncAPI) ActiveSymbols(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api.endpoint+"/instrument/active", nil)
	if err != nil {
		return nil, err
	}

	resp, err := api.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("instrument/active returned status %d", resp.StatusCode)
	}

	var instruments []instrumentInfo
	if err := json.NewDecoder(resp.Body).Decode(&instruments); err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(instruments))
	for _, instrument := range instruments {
		symbols = append(symbols, instrument.Symbol)
	}
	return symbols, nil
}

// ValidateSymbols rejects configuration naming a symbol the venue does not
// currently trade. Symbols prefixed with "." are indices and skip the check.
func (api *BitmexSyncAPI) ValidateSymbols(ctx context.Context, symbols []string) error {
	active, err := api.ActiveSymbols(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch active symbols: %w", err)
	}

	activeSet := make(map[string]struct{}, len(active))
	for _, s := range active {
		activeSet[s] = struct{}{}
	}

	for _, symbol := range symbols {
		if strings.HasPrefix(symbol, ".") {
			continue
		}
		if _, ok := activeSet[symbol]; !ok {
			return fmt.Errorf("%s: %w", symbol, domain.ErrSymbolNotActive)
		}
	}
	return nil
}
