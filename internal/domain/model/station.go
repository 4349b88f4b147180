package model

import "strconv"

// WeatherStation is the unit descriptor for one piece of fan-out work: a
// single measurement from the Buienradar feed, carrying everything a station
// worker needs to compose its image.
type WeatherStation struct {
	StationID          int      `json:"station_id"`
	StationName        string   `json:"station_name,omitempty"`
	RegionName         string   `json:"region_name,omitempty"`
	Lat                *float64 `json:"lat,omitempty"`
	Lon                *float64 `json:"lon,omitempty"`
	Temperature        *float64 `json:"temperature,omitempty"`
	WeatherDescription string   `json:"weather_description,omitempty"`
	Humidity           *int     `json:"humidity,omitempty"`
	WindSpeed          *float64 `json:"wind_speed,omitempty"`
	WindDirection      string   `json:"wind_direction,omitempty"`
}

// UnitID identifies the station inside a job's settled-unit set.
func (s WeatherStation) UnitID() string {
	return strconv.Itoa(s.StationID)
}
