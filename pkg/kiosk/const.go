package kiosk

const (
	StateHome     = "home"
	StateReason   = "reason"
	StateThankYou = "thankyou"
)

const (
	EventSelectPrimary = "select_primary"
	EventSelectReason  = "select_reason"
	EventBack          = "back"
	EventReset         = "reset"
)

const (
	MsgThankYou        = "¡Gracias por tu opinión!"
	MsgInvalidEmployee = "Ingresa un número de empleado válido."
	MsgShortComment    = "Escribe un comentario (mín. 3 caracteres)."
	MsgLongComment     = "El comentario admite máximo 200 caracteres."

	MsgWrongPIN    = "PIN incorrecto"
	MsgMissingURL  = "API URL es requerida"
	MsgSaved       = "Guardado ✓"
	MsgSaveFailed  = "No se pudo guardar"
	MsgAPIOK       = "API OK ✓"
	MsgAPIFailed   = "Error al probar API"
	MsgStatusOn    = "En línea"
	MsgStatusQueue = "En línea · Cola %d"
	MsgStatusOff   = "Sin conexión · Cola %d"
)
