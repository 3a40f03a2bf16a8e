package lfanalytics

import "time"

// Visitor représente un visiteur identifié par son adresse IP source.
// L'IP sert de clé naturelle de déduplication : pas de contrainte unique,
// deux requêtes concurrentes d'une IP inconnue peuvent créer deux lignes
// (imprécision connue et acceptée).
type Visitor struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	IPAddress  string    `gorm:"size:50;index" json:"ipAddress"`
	UserAgent  string    `json:"userAgent"`
	Referrer   string    `json:"referrer"`
	Language   string    `gorm:"size:50" json:"language"`
	Country    string    `gorm:"size:100" json:"country"`
	City       string    `gorm:"size:100" json:"city"`
	Region     string    `gorm:"size:100" json:"region"`
	Latitude   string    `gorm:"size:20" json:"latitude"`
	Longitude  string    `gorm:"size:20" json:"longitude"`
	Device     string    `gorm:"size:50" json:"device"`
	Browser    string    `gorm:"size:50" json:"browser"`
	Os         string    `gorm:"size:50" json:"os"`
	IsUnique   bool      `gorm:"default:true" json:"isUnique"`
	VisitCount int       `gorm:"default:1" json:"visitCount"`
	FirstVisit time.Time `json:"firstVisit"`
	LastVisit  time.Time `gorm:"index" json:"lastVisit"`
}

// PageVisit représente une vue de page rattachée à un visiteur.
// TimeSpent est rempli après coup par le beacon client, d'où le pointeur.
type PageVisit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	VisitorID uint      `gorm:"not null;index" json:"visitorId"`
	Path      string    `gorm:"not null;index" json:"path"`
	Title     string    `json:"title"`
	TimeSpent *int      `json:"timeSpent"`
	Referrer  string    `json:"referrer"`
	EntryPage bool      `json:"entryPage"`
	ExitPage  bool      `json:"exitPage"`
	Bounced   bool      `json:"bounced"`
	CreatedAt time.Time `gorm:"index" json:"timestamp"`

	Visitor Visitor `gorm:"foreignKey:VisitorID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName spécifie le nom de la table pour Visitor
func (Visitor) TableName() string {
	return "visitors"
}

// TableName spécifie le nom de la table pour PageVisit
func (PageVisit) TableName() string {
	return "page_visits"
}
