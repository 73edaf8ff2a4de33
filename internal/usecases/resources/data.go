package resources

// openingBook holds the named opening lines served by chess://opening-book.
// Moves are UCI, from the initial position.
var openingBook = map[string]interface{}{
	"openings": []map[string]interface{}{
		{
			"name":  "Italian Game",
			"eco":   "C50",
			"moves": []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1c4"},
		},
		{
			"name":  "Ruy Lopez",
			"eco":   "C60",
			"moves": []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5"},
		},
		{
			"name":  "Sicilian Defense",
			"eco":   "B20",
			"moves": []string{"e2e4", "c7c5"},
		},
		{
			"name":  "French Defense",
			"eco":   "C00",
			"moves": []string{"e2e4", "e7e6", "d2d4", "d7d5"},
		},
		{
			"name":  "Caro-Kann Defense",
			"eco":   "B10",
			"moves": []string{"e2e4", "c7c6", "d2d4", "d7d5"},
		},
		{
			"name":  "Queen's Gambit",
			"eco":   "D06",
			"moves": []string{"d2d4", "d7d5", "c2c4"},
		},
		{
			"name":  "King's Indian Defense",
			"eco":   "E60",
			"moves": []string{"d2d4", "g8f6", "c2c4", "g7g6"},
		},
		{
			"name":  "English Opening",
			"eco":   "A10",
			"moves": []string{"c2c4"},
		},
		{
			"name":  "Scandinavian Defense",
			"eco":   "B01",
			"moves": []string{"e2e4", "d7d5"},
		},
		{
			"name":  "London System",
			"eco":   "D02",
			"moves": []string{"d2d4", "d7d5", "g1f3", "g8f6", "c1f4"},
		},
	},
}

// tacticalPatterns holds the motif catalog served by chess://tactical-patterns.
var tacticalPatterns = map[string]interface{}{
	"patterns": []map[string]interface{}{
		{
			"name":        "Fork",
			"description": "One piece attacks two or more enemy pieces at once",
		},
		{
			"name":        "Pin",
			"description": "A piece cannot move without exposing a more valuable piece behind it",
		},
		{
			"name":        "Skewer",
			"description": "A valuable piece is attacked and must move, exposing a piece behind it",
		},
		{
			"name":        "Discovered Attack",
			"description": "Moving one piece uncovers an attack from another",
		},
		{
			"name":        "Double Check",
			"description": "Two pieces give check simultaneously, forcing a king move",
		},
		{
			"name":        "Back Rank Mate",
			"description": "Checkmate delivered on the home rank against a king trapped by its own pawns",
		},
		{
			"name":        "Smothered Mate",
			"description": "A knight checkmates a king surrounded by its own pieces",
		},
		{
			"name":        "Zugzwang",
			"description": "Any legal move worsens the position of the side to move",
		},
	},
}
