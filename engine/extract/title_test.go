package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Integer-Conversion-Error/AutoScraper/engine/domain"
)

func TestParseTitle(t *testing.T) {
	tests := []struct {
		in   string
		want Title
	}{
		{"2019 Honda Civic LX", Title{Year: "2019", Make: "Honda", Model: "Civic", Trim: "LX"}},
		{"  2021  Toyota   RAV4  ", Title{Year: "2021", Make: "Toyota", Model: "RAV4"}},
		{"2020 Jeep Grand Cherokee Limited 4x4", Title{Year: "2020", Make: "Jeep", Model: "Grand Cherokee", Trim: "Limited 4x4"}},
		{"2022 Land Rover Range Rover Sport HSE", Title{Year: "2022", Make: "Land Rover", Model: "Range Rover Sport", Trim: "HSE"}},
		{"Tesla Model 3 Long Range", Title{Make: "Tesla", Model: "Model 3", Trim: "Long Range"}},
		{"2018 chevy silverado 1500 LT", Title{Year: "2018", Make: "Chevrolet", Model: "silverado", Trim: "1500 LT"}},
		{"2017 Mazdaspeed Protege", Title{Year: "2017"}},
		{"Civic LX", Title{}},
		{"1500 Ram", Title{}},
		{"", Title{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ParseTitle(tt.in)); diff != "" {
				t.Errorf("ParseTitle(%q) (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestFillFromTitle(t *testing.T) {
	t.Run("fills blanks only", func(t *testing.T) {
		got := FillFromTitle(domain.VehicleDetails{Link: "l", Year: "2020", Price: "100"}, "2019 Honda Civic LX")
		want := domain.VehicleDetails{Link: "l", Year: "2020", Make: "Honda", Model: "Civic", Trim: "LX", Price: "100"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})
	t.Run("keeps page model when makes differ", func(t *testing.T) {
		got := FillFromTitle(domain.VehicleDetails{Make: "Acura"}, "2019 Honda Civic LX")
		if got.Model != "" || got.Trim != "" || got.Year != "2019" {
			t.Errorf("got %+v", got)
		}
	})
	t.Run("trim needs matching model", func(t *testing.T) {
		got := FillFromTitle(domain.VehicleDetails{Make: "Honda", Model: "Accord"}, "2019 Honda Civic LX")
		if got.Model != "Accord" || got.Trim != "" {
			t.Errorf("got %+v", got)
		}
	})
	t.Run("empty title", func(t *testing.T) {
		in := domain.VehicleDetails{Link: "l"}
		if got := FillFromTitle(in, ""); got != in {
			t.Errorf("got %+v", got)
		}
	})
}
