package lfusers

// User est le schéma d'identifiants hérité du site d'origine. La table est
// migrée pour compatibilité mais l'authentification admin passe par la
// configuration (login + hash argon2), pas par cette table.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Password string `gorm:"not null" json:"-"`
}

func (User) TableName() string {
	return "users"
}
