package dto

// StatusTotals cantidad de registros por estado en un período.
type StatusTotals struct {
	Pending  int `json:"pending"`
	Sent     int `json:"sent"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Error    int `json:"error"`
	Total    int `json:"total"`
}

// DocumentSummaryResponse resumen del día y del mes en curso.
type DocumentSummaryResponse struct {
	Today     StatusTotals   `json:"today"`
	Month     StatusTotals   `json:"month"`
	MonthType map[string]int `json:"monthByType"` // código de comprobante → cantidad
	DateLabel string         `json:"dateLabel"`
}
