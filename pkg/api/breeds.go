package api

type Breed struct {
	Label          string   `json:"label"`
	Name           string   `json:"name"`
	Population     string   `json:"population"`
	MilkProduction string   `json:"milk_production"`
	Lifespan       string   `json:"lifespan"`
	Strengths      []string `json:"strengths"`
	Image          string   `json:"image"`
}

type ListBreedsResponse struct {
	Breeds   []Breed `json:"breeds"`
	Fallback string  `json:"fallback"`
}

type ResolveBreedResponse struct {
	Label   string `json:"label"`
	Matched bool   `json:"matched"`
	Breed   Breed  `json:"breed"`
}
