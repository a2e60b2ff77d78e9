package assets

import "github.com/signalsfoundry/starfleet/model"

const cdnBase = "https://fq45fpomsg.ufs.sh/f/"

func stockVehicles() []model.Asset {
	return []model.Asset{
		// Free aircraft, low atmospheric layer.
		{
			ID: "jet", Label: "Jet", Price: 0,
			RemoteURL:  cdnBase + "dTANuJjEj28L5YrvvX4gcP1MLvUNE7nCdkS3TXVH0DOJhj9m",
			LocalPath:  "models/jet.glb",
			PreviewPNG: "spaceships/Jet-mobile.png",
			Radius:     4, Category: model.CategoryAircraft,
		},
		{
			ID: "airship", Label: "Airship", Price: 0,
			RemoteURL:  cdnBase + "dTANuJjEj28LLKJawTgZ9N4JvGE1AlHyQax8rqtkiOsgKoTP",
			LocalPath:  "models/airship.glb",
			PreviewPNG: "spaceships/airship-mobile.png",
			Radius:     4.5, Category: model.CategoryAircraft,
		},

		// Paid spaceships, outer layer.
		{
			ID: "air-police", Label: "Air Police – High Speed", Price: 5,
			RemoteURL:  cdnBase + "dTANuJjEj28L6abe3kuLrpQnYBGzqU8TAZaPEugtDcLyOxvw",
			LocalPath:  "models/Air Police - High Speed.glb",
			PreviewPNG: "spaceships/air-police_high_speed-mobile.png",
			Radius:     7, Category: model.CategorySpaceship,
		},
		{
			ID: "colored-freighter", Label: "Colored Freighter", Price: 5,
			RemoteURL:  cdnBase + "dTANuJjEj28LPEFdGEyfsAkJFcXNHiEneUlMWtKZq204buvB",
			LocalPath:  "models/Colored Freighter.glb",
			PreviewPNG: "spaceships/colored_freighter-mobile.png",
			Radius:     7.2, Category: model.CategorySpaceship,
		},
		{
			ID: "x-wing-2", Label: "x-wing II", Price: 5,
			RemoteURL:  cdnBase + "dTANuJjEj28LA1Zh8X36qu5HJNAtLzI7XQiKFcy8lj2avWmo",
			LocalPath:  "models/x-wing.glb",
			PreviewPNG: "spaceships/x_wing_II-mobile.png",
			Radius:     6.5, Category: model.CategorySpaceship,
		},
		{
			ID: "x-wing", Label: "T-65 X-Wing Starfighter", Price: 5,
			RemoteURL:  cdnBase + "dTANuJjEj28LY9t0DB6p2oF1aSPuXhAKQdscCkUW69GzDlER",
			LocalPath:  "models/T-65 X-Wing Starfighter.glb",
			PreviewPNG: "spaceships/T-65_X-Wing_Starfighter-mobile.png",
			Radius:     6.8, Category: model.CategorySpaceship,
		},
		{
			ID: "ship-1", Label: "Stardust Cruiser", Price: 5,
			RemoteURL:  cdnBase + "dTANuJjEj28L3DVId49nHP4bXojdt3ZFslnSkT07OVQW6Ugr",
			LocalPath:  "models/Spaceship.glb",
			PreviewPNG: "spaceships/Stardust_Cruiser-mobile.png",
			Radius:     6.2, Category: model.CategorySpaceship,
		},
		{
			ID: "ship-2", Label: "Nova Voyager", Price: 5,
			RemoteURL:  cdnBase + "dTANuJjEj28LMHWYMtF7xSFh8PNIwJik1g69ZLRvnCestXzY",
			LocalPath:  "models/Spaceship 2.glb",
			PreviewPNG: "spaceships/Nova_Voyager-mobile.png",
			Radius:     6.4, Category: model.CategorySpaceship,
		},
		{
			ID: "ship-3", Label: "Galactic Drifter", Price: 5,
			RemoteURL:  cdnBase + "dTANuJjEj28LF5COeOKhYN4IEuAKQ5DSGUxgBP7T9bspeOFt",
			LocalPath:  "models/Spaceship 3.glb",
			PreviewPNG: "spaceships/Galactic_Drifter-mobile.png",
			Radius:     6.6, Category: model.CategorySpaceship,
		},
		{
			ID: "ship-4", Label: "Orion Scout", Price: 5,
			RemoteURL:  cdnBase + "dTANuJjEj28LjAliuTkb0IJTkFvWhHX7Px68OYa5NdneAVKy",
			LocalPath:  "models/Spaceship 4.glb",
			PreviewPNG: "spaceships/Orion_Scout-mobile.png",
			Radius:     6.8, Category: model.CategorySpaceship,
		},
		{
			ID: "ship-5", Label: "Astro Hopper", Price: 5,
			RemoteURL:  cdnBase + "dTANuJjEj28LnGCpd8zQcTJN5WH6GwqortR1IE48sXU3izdZ",
			LocalPath:  "models/spaceship 5.glb",
			PreviewPNG: "spaceships/astro_hopper-mobile.png",
			Radius:     7.0, Category: model.CategorySpaceship,
		},
	}
}
