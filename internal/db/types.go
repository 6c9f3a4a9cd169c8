package db

const (
	TX_STATUS_PENDING  = "pending"
	TX_STATUS_MINED    = "mined"
	TX_STATUS_REVERTED = "reverted"
	TX_STATUS_FAILED   = "failed" // never reached the mempool

	TX_STATUS_UNCONFIRMED = "unconfirmed" // no receipt within the confirmation wait
	TX_STATUS_DROPPED     = "dropped"
)
