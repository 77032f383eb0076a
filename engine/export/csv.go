// Package export writes scraped details to CSV and derives where the file
// goes.
package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Integer-Conversion-Error/AutoScraper/engine/domain"
)

// Header is the fixed CSV column order.
var Header = []string{
	"Link", "Make", "Model", "Year", "Trim", "Price", "Drivetrain", "Kilometres",
	"Status", "Body Type", "Engine", "Cylinder", "Transmission", "Exterior Colour",
	"Doors", "Fuel Type", "City Fuel Economy", "Hwy Fuel Economy",
}

// Record renders d in Header order. Absent fields are empty strings.
func Record(d domain.VehicleDetails) []string {
	return []string{
		d.Link, d.Make, d.Model, d.Year, d.Trim, d.Price, d.Drivetrain, d.Kilometres,
		d.Status, d.BodyType, d.Engine, d.Cylinder, d.Transmission, d.ExteriorColour,
		d.Doors, d.FuelType, d.CityFuelEconomy, d.HwyFuelEconomy,
	}
}

// Write streams the header and one row per detail to w.
func Write(w io.Writer, details []domain.VehicleDetails) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, d := range details {
		if err := cw.Write(Record(d)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV creates path, including parent directories, and writes details
// to it. Any error leaves the file unreliable; nothing is rolled back.
func WriteCSV(details []domain.VehicleDetails, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export: create dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}

	bw := bufio.NewWriter(f)
	if err := Write(bw, details); err != nil {
		f.Close()
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("export: flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: close %s: %w", path, err)
	}
	return nil
}

// ReadCSV loads a file written by WriteCSV.
func ReadCSV(path string) ([]domain.VehicleDetails, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(bufio.NewReader(f)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("export: read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("export: %s has no header", path)
	}
	if len(rows[0]) != len(Header) {
		return nil, fmt.Errorf("export: %s: header has %d columns, want %d", path, len(rows[0]), len(Header))
	}
	out := make([]domain.VehicleDetails, 0, len(rows)-1)
	for _, r := range rows[1:] {
		out = append(out, fromRecord(r))
	}
	return out, nil
}

func fromRecord(r []string) domain.VehicleDetails {
	return domain.VehicleDetails{
		Link: r[0], Make: r[1], Model: r[2], Year: r[3], Trim: r[4], Price: r[5],
		Drivetrain: r[6], Kilometres: r[7], Status: r[8], BodyType: r[9], Engine: r[10],
		Cylinder: r[11], Transmission: r[12], ExteriorColour: r[13], Doors: r[14],
		FuelType: r[15], CityFuelEconomy: r[16], HwyFuelEconomy: r[17],
	}
}
