package handlers

// Message keys shown to end users.
const (
	msgIdentityOK       = "identity.ok"
	msgIdentityNotFound = "identity.not_found"
	msgIdentityFailed   = "identity.failed"
	msgIdentityMissing  = "identity.missing"
	msgAvatarInvalid    = "avatar.invalid"
	msgNoAvatar         = "generation.no_avatar"
	msgNoArtifact       = "artifact.none"
	msgTooLarge         = "artifact.too_large"
	msgSessionMissing   = "session.missing"
)

var messages = map[string]map[string]string{
	"en": {
		msgIdentityOK:       "Successfully fetched user data!",
		msgIdentityNotFound: "User not found. Check the ID and try again.",
		msgIdentityFailed:   "Failed to fetch user data. Please try again later.",
		msgIdentityMissing:  "Please enter a user ID.",
		msgAvatarInvalid:    "That file is not a supported image (PNG, JPEG, GIF or WEBP).",
		msgNoAvatar:         "Choose an avatar before downloading.",
		msgNoArtifact:       "Nothing has been generated yet.",
		msgTooLarge:         "The image is too large to download directly. Extract its frames instead.",
		msgSessionMissing:   "Your session expired. Reload the page.",
	},
	"es": {
		msgIdentityOK:       "¡Datos de usuario obtenidos correctamente!",
		msgIdentityNotFound: "Usuario no encontrado. Revisa el ID e inténtalo de nuevo.",
		msgIdentityFailed:   "No se pudieron obtener los datos del usuario. Inténtalo más tarde.",
		msgIdentityMissing:  "Introduce un ID de usuario.",
		msgAvatarInvalid:    "Ese archivo no es una imagen compatible (PNG, JPEG, GIF o WEBP).",
		msgNoAvatar:         "Elige un avatar antes de descargar.",
		msgNoArtifact:       "Todavía no se ha generado nada.",
		msgTooLarge:         "La imagen es demasiado grande para descargarla directamente. Extrae sus fotogramas.",
		msgSessionMissing:   "Tu sesión ha caducado. Recarga la página.",
	},
	"fr": {
		msgIdentityOK:       "Données utilisateur récupérées avec succès !",
		msgIdentityNotFound: "Utilisateur introuvable. Vérifiez l'identifiant et réessayez.",
		msgIdentityFailed:   "Impossible de récupérer les données utilisateur. Réessayez plus tard.",
		msgIdentityMissing:  "Veuillez saisir un identifiant utilisateur.",
		msgAvatarInvalid:    "Ce fichier n'est pas une image prise en charge (PNG, JPEG, GIF ou WEBP).",
		msgNoAvatar:         "Choisissez un avatar avant de télécharger.",
		msgNoArtifact:       "Rien n'a encore été généré.",
		msgTooLarge:         "L'image est trop lourde pour être téléchargée directement. Extrayez ses images.",
		msgSessionMissing:   "Votre session a expiré. Rechargez la page.",
	},
}

// Message returns the text for key in locale, falling back to English.
func Message(locale, key string) string {
	if m, ok := messages[locale]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	return messages["en"][key]
}
