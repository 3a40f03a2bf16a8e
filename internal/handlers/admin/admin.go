package handlers_admin

import (
	"littlefolio/internal/lfconfig"
	"net/http"

	"github.com/andskur/argon2-hashing"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AdminHandler gère la connexion admin. Les identifiants viennent de la
// configuration (hash argon2), pas de la table users.
type AdminHandler struct {
	user lfconfig.UserConfig
}

func NewAdminHandler(user lfconfig.UserConfig) *AdminHandler {
	return &AdminHandler{user: user}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (ah *AdminHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	// Vérification login / pass
	err := argon2.CompareHashAndPassword([]byte(ah.user.Hash), []byte(req.Password))
	if err != nil || req.Username != ah.user.Login {
		log.Warn().Str("user", req.Username).Str("ip", c.ClientIP()).Msg("Tentative de connexion échouée")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Identifiants incorrects"})
		return
	}
	log.Info().Str("user", req.Username).Str("ip", c.ClientIP()).Msg("Connexion réussie")

	// Créer la session
	session := sessions.Default(c)
	session.Set("user_id", "admin")
	session.Set("username", req.Username)
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Connexion réussie"})
}

func (ah *AdminHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.JSON(http.StatusOK, gin.H{"message": "Déconnexion réussie"})
}
