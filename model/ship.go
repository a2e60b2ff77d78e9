package model

import "time"

// PriceTier distinguishes free launches from paid ones. It only affects
// default orbit layer and visual scale, never the motion math.
type PriceTier int

const (
	PriceFree PriceTier = iota
	PricePaid
)

func (p PriceTier) String() string {
	if p == PricePaid {
		return "paid"
	}
	return "free"
}

// Ship is a registered project rendered as an orbiting vehicle.
//
// Orbital fields are pointers because legacy rows store NULL for them; the
// motion layer substitutes defaults. Records are treated as immutable once
// they enter the live registry.
type Ship struct {
	ID            string   `json:"id"`
	UserID        string   `json:"user_id,omitempty"`
	WebsiteURL    string   `json:"website_url,omitempty"`
	Name          string   `json:"name"`
	Tagline       string   `json:"tagline,omitempty"`
	Description   string   `json:"description,omitempty"`
	IconURL       string   `json:"icon_url,omitempty"`
	ScreenshotURL string   `json:"screenshot_url,omitempty"`
	SpaceshipID   string   `json:"spaceship_id"`
	OrbitTags     []string `json:"orbit_tags,omitempty"`

	OrbitRadius   *float64 `json:"orbit_radius"`
	Inclination   *float64 `json:"inclination"`
	Phase         *float64 `json:"phase"`
	AngularSpeed  *float64 `json:"angular_speed"`
	AscendingNode *float64 `json:"ascending_node,omitempty"`
	Eccentricity  *float64 `json:"eccentricity,omitempty"`

	// Optional two-line element set; ships carrying one follow a real
	// satellite track instead of the stylised orbit.
	TLELine1 string `json:"tle_line1,omitempty"`
	TLELine2 string `json:"tle_line2,omitempty"`

	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// Tier reports whether the ship was a free or paid launch.
func (s Ship) Tier() PriceTier {
	if s.Price > 0 {
		return PricePaid
	}
	return PriceFree
}

// HasTLE reports whether both element lines are present.
func (s Ship) HasTLE() bool {
	return s.TLELine1 != "" && s.TLELine2 != ""
}

// Float returns a pointer to v. Handy for building ship literals.
func Float(v float64) *float64 {
	return &v
}
