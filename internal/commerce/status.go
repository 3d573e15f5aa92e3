package commerce

type OrderStatus string

const (
	StatusWaitlist  OrderStatus = "WAITLIST"
	StatusShipping  OrderStatus = "SHIPPING"
	StatusDelivered OrderStatus = "DELIVERED"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	StatusWaitlist:  {StatusShipping: true},
	StatusShipping:  {StatusDelivered: true},
	StatusDelivered: {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

func (s OrderStatus) Valid() bool {
	_, ok := validNext[s]
	return ok
}
