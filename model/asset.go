package model

// Category groups vehicles into orbit bands and scale/orientation presets.
type Category string

const (
	CategoryAircraft  Category = "aircraft"
	CategorySpaceship Category = "spaceship"
)

// SourceOrder decides which model location the loader tries first.
type SourceOrder string

const (
	RemoteFirst SourceOrder = "remote-first"
	LocalFirst  SourceOrder = "local-first"
)

// Asset describes a loadable vehicle model.
type Asset struct {
	ID         string      `json:"id" koanf:"id" validate:"required"`
	Label      string      `json:"label" koanf:"label"`
	Price      float64     `json:"price" koanf:"price" validate:"gte=0"`
	RemoteURL  string      `json:"remote_url" koanf:"remote_url" validate:"omitempty,url"`
	LocalPath  string      `json:"local_path" koanf:"local_path"`
	PreviewPNG string      `json:"preview_png,omitempty" koanf:"preview_png"`
	Radius     float64     `json:"radius" koanf:"radius" validate:"gt=0"`
	Category   Category    `json:"category" koanf:"category" validate:"oneof=aircraft spaceship"`
	Order      SourceOrder `json:"source_order" koanf:"source_order" validate:"omitempty,oneof=remote-first local-first"`
}

// Tier reports the price tier of the asset.
func (a Asset) Tier() PriceTier {
	if a.Price > 0 {
		return PricePaid
	}
	return PriceFree
}

// SourceKind names where a model location lives.
type SourceKind string

const (
	SourceRemote SourceKind = "remote"
	SourceLocal  SourceKind = "local"
)

// ModelLocation is one place a vehicle model can be fetched from.
type ModelLocation struct {
	Kind SourceKind
	Path string
}

// Locations returns the asset's model locations in load order. Empty
// locations are skipped.
func (a Asset) Locations() []ModelLocation {
	remote := ModelLocation{Kind: SourceRemote, Path: a.RemoteURL}
	local := ModelLocation{Kind: SourceLocal, Path: a.LocalPath}
	ordered := []ModelLocation{remote, local}
	if a.Order == LocalFirst {
		ordered = []ModelLocation{local, remote}
	}
	out := ordered[:0]
	for _, loc := range ordered {
		if loc.Path != "" {
			out = append(out, loc)
		}
	}
	return out
}
