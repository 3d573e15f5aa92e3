package commerce

import (
	"time"

	"github.com/shopspring/decimal"
)

type UserType string

const (
	UserStandard UserType = "STANDARD"
	UserCreator  UserType = "CREATOR"
)

const (
	CardDebit  = "DEBIT"
	CardCredit = "CREDIT"
)

// PaymentCard is stored masked; CardNumber keeps only the last four digits.
type PaymentCard struct {
	CardNumber string `json:"cardNumber"`
	HolderName string `json:"holderName"`
	ExpiryDate string `json:"expiryDate"`
	Type       string `json:"type"`
}

type User struct {
	ID            string          `json:"id"`
	UserType      UserType        `json:"userType"`
	FirstName     string          `json:"firstName"`
	LastName      string          `json:"lastName"`
	Email         string          `json:"email"`
	Balance       decimal.Decimal `json:"balance"`
	FollowedUsers []string        `json:"followedUsers"`
	Followers     []string        `json:"followers"`
	StoreID       string          `json:"storeId,omitempty"`
	Card          *PaymentCard    `json:"card,omitempty"`
}

type ProductType string

const (
	ProductPhysical      ProductType = "PHYSICAL"
	ProductDigitalCourse ProductType = "DIGITAL_COURSE"
	ProductDigitalEbook  ProductType = "DIGITAL_EBOOK"
	ProductDigitalOther  ProductType = "DIGITAL_OTHER"
)

func (t ProductType) IsPhysical() bool { return t == ProductPhysical }

type ProductRating struct {
	ID        string    `json:"id"`
	SaleID    string    `json:"saleId"`
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Product struct {
	ID                      string          `json:"id"`
	StoreID                 string          `json:"storeId"`
	Name                    string          `json:"name"`
	Description             string          `json:"description"`
	Price                   decimal.Decimal `json:"price"`
	AffiliateCommissionRate decimal.Decimal `json:"affiliateCommissionRate"`
	Type                    ProductType     `json:"type"`
	DigitalContentURL       string          `json:"digitalContentUrl,omitempty"`
	Colors                  []string        `json:"colors,omitempty"`
	Ratings                 []ProductRating `json:"ratings"`
	AverageRating           float64         `json:"averageRating"`
	RatingCount             int             `json:"ratingCount"`
}

// AddRating appends r and recomputes the derived aggregates from the full
// ratings list, so AverageRating and RatingCount never drift from Ratings.
func (p *Product) AddRating(r ProductRating) {
	p.Ratings = append(p.Ratings, r)
	p.recomputeRatings()
}

func (p *Product) recomputeRatings() {
	p.RatingCount = len(p.Ratings)
	if p.RatingCount == 0 {
		p.AverageRating = 0
		return
	}
	sum := 0
	for _, r := range p.Ratings {
		sum += r.Rating
	}
	p.AverageRating = float64(sum) / float64(p.RatingCount)
}

type Store struct {
	ID          string   `json:"id"`
	ProfessorID string   `json:"professorId"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ProductIDs  []string `json:"productIds"`
}

type ShippingAddress struct {
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode" validate:"required"`
}

type CartItem struct {
	ProductID     string `json:"productId" validate:"required"`
	Quantity      int    `json:"quantity" validate:"gt=0"`
	SelectedColor string `json:"selectedColor,omitempty"`
}

// sameLine reports whether it and (productID, color) address the same cart line.
func (it CartItem) sameLine(productID, color string) bool {
	return it.ProductID == productID && it.SelectedColor == color
}

type Sale struct {
	ID                string           `json:"id"`
	ProductID         string           `json:"productId"`
	BuyerID           string           `json:"buyerId"`
	AffiliateUserID   string           `json:"affiliateUserId"`
	StoreID           string           `json:"storeId"`
	CommissionEarned  decimal.Decimal  `json:"commissionEarned"`
	SaleAmount        decimal.Decimal  `json:"saleAmount"`
	Timestamp         time.Time        `json:"timestamp"`
	ShippingAddress   *ShippingAddress `json:"shippingAddress,omitempty"`
	DigitalContentURL string           `json:"digitalContentUrl,omitempty"`
	SelectedColor     string           `json:"selectedColor,omitempty"`
	Status            OrderStatus      `json:"status"`
	IsRated           bool             `json:"isRated"`
}

type NotificationType string

const (
	NotifyLike                  NotificationType = "LIKE"
	NotifyComment               NotificationType = "COMMENT"
	NotifyNewFollower           NotificationType = "NEW_FOLLOWER"
	NotifyAffiliateSale         NotificationType = "AFFILIATE_SALE"
	NotifyReaction              NotificationType = "REACTION"
	NotifyPostIndication        NotificationType = "POST_INDICATION"
	NotifyProfileRecommendation NotificationType = "PROFILE_RECOMMENDATION"
	NotifySaleRated             NotificationType = "SALE_RATED"
)

type Notification struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	RecipientID string           `json:"recipientId"`
	ActorID     string           `json:"actorId"`
	PostID      string           `json:"postId,omitempty"`
	SaleID      string           `json:"saleId,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	IsRead      bool             `json:"isRead"`
}

// SaleFilter selects sales by one of the indexed columns. Empty fields are ignored;
// an all-empty filter matches every sale.
type SaleFilter struct {
	BuyerID     string
	AffiliateID string
	StoreID     string
}

func (f SaleFilter) Match(s Sale) bool {
	if f.BuyerID != "" && s.BuyerID != f.BuyerID {
		return false
	}
	if f.AffiliateID != "" && s.AffiliateUserID != f.AffiliateID {
		return false
	}
	if f.StoreID != "" && s.StoreID != f.StoreID {
		return false
	}
	return true
}
