package lfanalytics

import (
	"fmt"
	"math"
	"net/netip"
	"strconv"
	"strings"

	"github.com/oschwald/geoip2-golang/v2"
)

// GeoData contient la géolocalisation approximative d'une IP.
type GeoData struct {
	Country   string
	City      string
	Region    string
	Latitude  string
	Longitude string
}

// GeoResolver est l'interface de résolution IP -> localisation.
// L'implémentation par défaut est une heuristique déterministe sans base
// GeoIP ; MaxmindResolver la remplace quand une base mmdb est configurée.
type GeoResolver interface {
	Resolve(ip string) GeoData
}

// HeuristicResolver dérive une localisation plausible mais fictive de
// l'adresse IP elle-même. Les tables de villes et de régions sont exposées
// pour que les tests puissent les énumérer.
type HeuristicResolver struct {
	Countries []UARule
	Cities    []string
	Regions   []string
}

func DefaultCountryRules() []UARule {
	return []UARule{
		{Name: "United States", Contains: "1."},
		{Name: "United Kingdom", Contains: "2."},
		{Name: "Japan", Contains: "3."},
		{Name: "Germany", Contains: "4."},
		{Name: "Brazil", Contains: "5."},
		{Name: "Australia", Contains: "6."},
		{Name: "Canada", Contains: "7."},
		{Name: "France", Contains: "8."},
		{Name: "Indonesia", Contains: "9."},
	}
}

func NewHeuristicResolver() *HeuristicResolver {
	return &HeuristicResolver{
		Countries: DefaultCountryRules(),
		Cities: []string{
			"New York", "London", "Tokyo", "Berlin", "São Paulo",
			"Sydney", "Toronto", "Paris", "Jakarta", "Stockholm",
		},
		Regions: []string{
			"North", "South", "East", "West", "Central",
			"Northwest", "Northeast", "Southwest", "Southeast", "Midlands",
		},
	}
}

// IsPrivateIP détecte les IP locales ou réservées, non résolues.
func IsPrivateIP(ip string) bool {
	if ip == "" || ip == "unknown" {
		return true
	}

	if ip == "127.0.0.1" ||
		ip == "localhost" ||
		strings.HasPrefix(ip, "192.168.") ||
		strings.HasPrefix(ip, "10.") ||
		strings.HasPrefix(ip, "172.16.") ||
		strings.HasPrefix(ip, "::1") {
		return true
	}

	return false
}

func (hr *HeuristicResolver) Resolve(ip string) GeoData {
	if IsPrivateIP(ip) {
		return GeoData{
			Country:   "Local",
			City:      "Local",
			Region:    "Local",
			Latitude:  "0",
			Longitude: "0",
		}
	}

	// Somme des octets : valeur déterministe mais dispersée
	ipSum := 0
	for _, part := range strings.Split(ip, ".") {
		n, _ := strconv.Atoi(part)
		ipSum += n
	}

	country := "Other"
	for _, rule := range hr.Countries {
		if strings.HasPrefix(ip, rule.Contains) {
			country = rule.Name
			break
		}
	}

	city := hr.Cities[ipSum%len(hr.Cities)]
	region := hr.Regions[(ipSum*2)%len(hr.Regions)]

	latBase := float64(ipSum%180 - 90)
	lonBase := float64(ipSum*2%360 - 180)

	return GeoData{
		Country:   country,
		City:      city,
		Region:    region,
		Latitude:  fmt.Sprintf("%.4f", latBase+math.Sin(float64(ipSum))*10),
		Longitude: fmt.Sprintf("%.4f", lonBase+math.Cos(float64(ipSum))*10),
	}
}

// MaxmindResolver résout via une base GeoIP2/GeoLite2 mmdb.
type MaxmindResolver struct {
	reader *geoip2.Reader
}

func NewMaxmindResolver(path string) (*MaxmindResolver, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("impossible d'ouvrir la base GeoIP %s: %w", path, err)
	}
	return &MaxmindResolver{reader: reader}, nil
}

func (mr *MaxmindResolver) Resolve(ip string) GeoData {
	if IsPrivateIP(ip) {
		return GeoData{Country: "Local", City: "Local", Region: "Local", Latitude: "0", Longitude: "0"}
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return GeoData{}
	}

	record, err := mr.reader.City(addr)
	if err != nil {
		return GeoData{}
	}

	geo := GeoData{
		Country: record.Country.Names.English,
		City:    record.City.Names.English,
	}
	if len(record.Subdivisions) > 0 {
		geo.Region = record.Subdivisions[0].Names.English
	}
	if record.Location.Latitude != nil {
		geo.Latitude = fmt.Sprintf("%.4f", *record.Location.Latitude)
	}
	if record.Location.Longitude != nil {
		geo.Longitude = fmt.Sprintf("%.4f", *record.Location.Longitude)
	}

	return geo
}

func (mr *MaxmindResolver) Close() error {
	return mr.reader.Close()
}
