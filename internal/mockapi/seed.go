package mockapi

import "github.com/samhoque/apikit/internal/users"

// SeedUsers returns the first JSONPlaceholder users.
func SeedUsers() []users.User {
	return []users.User{
		{
			ID:       1,
			Name:     "Leanne Graham",
			Username: "Bret",
			Email:    "Sincere@april.biz",
			Address: users.Address{
				Street:  "Kulas Light",
				Suite:   "Apt. 556",
				City:    "Gwenborough",
				Zipcode: "92998-3874",
				Geo:     users.Geo{Lat: "-37.3159", Lng: "81.1496"},
			},
			Phone:   "1-770-736-8031 x56442",
			Website: "hildegard.org",
			Company: users.Company{
				Name:        "Romaguera-Crona",
				CatchPhrase: "Multi-layered client-server neural-net",
				BS:          "harness real-time e-markets",
			},
		},
		{
			ID:       2,
			Name:     "Ervin Howell",
			Username: "Antonette",
			Email:    "Shanna@melissa.tv",
			Address: users.Address{
				Street:  "Victor Plains",
				Suite:   "Suite 879",
				City:    "Wisokyburgh",
				Zipcode: "90566-7771",
				Geo:     users.Geo{Lat: "-43.9509", Lng: "-34.4618"},
			},
			Phone:   "010-692-6593 x09125",
			Website: "anastasia.net",
			Company: users.Company{
				Name:        "Deckow-Crist",
				CatchPhrase: "Proactive didactic contingency",
				BS:          "synergize scalable supply-chains",
			},
		},
		{
			ID:       3,
			Name:     "Clementine Bauch",
			Username: "Samantha",
			Email:    "Nathan@yesenia.net",
			Address: users.Address{
				Street:  "Douglas Extension",
				Suite:   "Suite 847",
				City:    "McKenziehaven",
				Zipcode: "59590-4157",
				Geo:     users.Geo{Lat: "-68.6102", Lng: "-47.0653"},
			},
			Phone:   "1-463-123-4447",
			Website: "ramiro.info",
			Company: users.Company{
				Name:        "Romaguera-Jacobson",
				CatchPhrase: "Face to face bifurcated interface",
				BS:          "e-enable strategic applications",
			},
		},
	}
}
