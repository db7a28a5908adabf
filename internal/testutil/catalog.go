// Package testutil provides shared catalog fixtures for tests.
package testutil

import (
	"strconv"
	"time"

	"github.com/devrev/catalogd/internal/model"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Mileage returns a pointer for CatalogEntry.Mileage
func Mileage(km int64) *int64 {
	return &km
}

// SampleEntries returns a small catalog covering every facet
func SampleEntries() []model.CatalogEntry {
	return []model.CatalogEntry{
		{ID: "1", Title: "BMW 320d M Sport", Make: "BMW", Model: "3 Series", Generation: "G20", Grade: "M Sport",
			Engine: "2.0d", TrimLevel: "M Sport", Color: "black", FuelType: "diesel", Transmission: "automatic",
			BodyType: "sedan", Seats: 5, Price: 31000, Year: 2020, Mileage: Mileage(42000),
			AddedAt: epoch.Add(1 * time.Hour), PopularityScore: 8.1},
		{ID: "2", Title: "BMW 330i Luxury", Make: "BMW", Model: "3 Series", Generation: "G20", Grade: "Luxury",
			Engine: "2.0", TrimLevel: "Luxury", Color: "white", FuelType: "petrol", Transmission: "automatic",
			BodyType: "sedan", Seats: 5, Price: 34000, Year: 2021, Mileage: Mileage(18000),
			AddedAt: epoch.Add(2 * time.Hour), PopularityScore: 7.4, Accidents: 1},
		{ID: "3", Title: "BMW 320i", Make: "BMW", Model: "3 Series", Generation: "F30", Grade: "Base",
			Engine: "2.0", TrimLevel: "Base", Color: "black", FuelType: "petrol", Transmission: "manual",
			BodyType: "sedan", Seats: 5, Price: 15000, Year: 2015, Mileage: nil,
			AddedAt: epoch.Add(3 * time.Hour), PopularityScore: 5.0, Accidents: 2},
		{ID: "4", Title: "BMW X5 xDrive40i", Make: "BMW", Model: "X5", Generation: "G05", Grade: "xLine",
			Engine: "3.0", TrimLevel: "xLine", Color: "blue", FuelType: "petrol", Transmission: "automatic",
			BodyType: "suv", Seats: 7, Price: 62000, Year: 2022, Mileage: Mileage(9000),
			AddedAt: epoch.Add(4 * time.Hour), PopularityScore: 9.3},
		{ID: "5", Title: "Audi A4 Avant", Make: "Audi", Model: "A4", Generation: "B9", Grade: "S line",
			Engine: "2.0 TDI", TrimLevel: "S line", Color: "grey", FuelType: "diesel", Transmission: "automatic",
			BodyType: "wagon", Seats: 5, Price: 27000, Year: 2019, Mileage: Mileage(61000),
			AddedAt: epoch.Add(5 * time.Hour), PopularityScore: 6.6},
		{ID: "6", Title: "Audi A4 Sedan", Make: "Audi", Model: "A4", Generation: "B8", Grade: "Base",
			Engine: "1.8 TFSI", TrimLevel: "Base", Color: "black", FuelType: "petrol", Transmission: "manual",
			BodyType: "sedan", Seats: 5, Price: 15000, Year: 2014, Mileage: Mileage(120000),
			AddedAt: epoch.Add(6 * time.Hour), PopularityScore: 4.2, Accidents: 1},
		{ID: "7", Title: "Audi Q5 e-tron", Make: "Audi", Model: "Q5", Generation: "FY", Grade: "Sport",
			Engine: "55 TFSI e", TrimLevel: "Sport", Color: "white", FuelType: "hybrid", Transmission: "automatic",
			BodyType: "suv", Seats: 5, Price: 48000, Year: 2023, Mileage: Mileage(5000),
			AddedAt: epoch.Add(7 * time.Hour), PopularityScore: 8.8},
		{ID: "8", Title: "kia sorento", Make: "kia", Model: "Sorento", Generation: "MQ4", Grade: "Prestige",
			Engine: "2.2 CRDi", TrimLevel: "Prestige", Color: "silver", FuelType: "diesel", Transmission: "automatic",
			BodyType: "suv", Seats: 7, Price: 39000, Year: 2021, Mileage: nil,
			AddedAt: epoch.Add(8 * time.Hour), PopularityScore: 7.0},
	}
}

// Generated returns n entries with ascending ids and varying sort keys
func Generated(n int) []model.CatalogEntry {
	makes := []string{"BMW", "audi", "Kia", "Toyota"}
	out := make([]model.CatalogEntry, n)
	for i := 0; i < n; i++ {
		out[i] = model.CatalogEntry{
			ID:              strconv.Itoa(i + 1),
			Make:            makes[i%len(makes)],
			Price:           float64(10000 + (i*7919)%50000),
			Year:            2005 + (i*31)%19,
			Mileage:         Mileage(int64((i * 104729) % 200000)),
			AddedAt:         epoch.Add(time.Duration((i*37)%n) * time.Minute),
			PopularityScore: float64((i * 13) % 10),
		}
	}
	return out
}
