package connectors

import "fmt"

// phemexBizErrors maps Phemex bizError codes to their names.
var phemexBizErrors = map[int]string{
	11001: "TE_SUCCESS",
	11002: "TE_UNKNOWN_ERROR",
	11003: "TE_INVALID_ARGUMENT",
	11005: "TE_MAINTENANCE_MODE",
	11011: "TE_REDUCE_ONLY_ABORT",
	11015: "TE_PRICE_TOO_SMALL",
	11016: "TE_PRICE_TOO_LARGE",
	11017: "TE_QTY_TOO_SMALL",
	11018: "TE_QTY_TOO_LARGE",
	11019: "TE_VALUE_TOO_SMALL",
	11020: "TE_VALUE_TOO_LARGE",
	11050: "TE_RISK_LIMIT_EXCEEDED",
	11051: "TE_INSUFFICIENT_BALANCE",
	11052: "TE_INSUFFICIENT_MARGIN",
	11062: "TE_POSITION_NOT_EXIST",
	11066: "TE_ORDER_UNSUPPORTED",
	11067: "TE_ORDER_DISABLED",
	11070: "TE_MARKET_CLOSED",
	11100: "TE_TOO_MANY_ORDERS",
	11120: "TE_CONTRACT_NOT_FOUND",
	10002: "OM_ORDER_NOT_FOUND",
	10003: "OM_ORDER_PENDING_CANCEL",
}

// GetErrorMsg returns the name of a Phemex error code.
func GetErrorMsg(code int) string {
	if msg, ok := phemexBizErrors[code]; ok {
		return msg
	}
	return fmt.Sprintf("UNKNOWN_PHEMEX_ERROR_%d", code)
}
