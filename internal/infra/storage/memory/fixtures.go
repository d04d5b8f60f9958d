package memory

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	domainfleet "carhire/internal/domain/fleet"
)

// LoadCars reads a JSON array of cars in any supported field spelling.
// Cars without an id are skipped and logged.
func LoadCars(path string, logger *slog.Logger) ([]*domainfleet.Car, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return DecodeCars(data, logger)
}

func DecodeCars(data []byte, logger *slog.Logger) ([]*domainfleet.Car, error) {
	var raws []domainfleet.RawCar
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	cars := make([]*domainfleet.Car, 0, len(raws))
	for i, raw := range raws {
		car, _, err := domainfleet.Normalize(raw, logger)
		if err != nil {
			if logger != nil {
				logger.Warn("fixture car skipped", "index", i, "error", err)
			}
			continue
		}
		cars = append(cars, car)
	}
	return cars, nil
}
