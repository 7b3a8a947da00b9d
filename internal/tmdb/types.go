package tmdb

// details covers both /movie/{id} and /tv/{id} payloads; the kind decides which name
// and date fields are read.
type details struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	Name           string  `json:"name"`
	Overview       string  `json:"overview"`
	ReleaseDate    string  `json:"release_date"`
	FirstAirDate   string  `json:"first_air_date"`
	Runtime        int     `json:"runtime"`
	EpisodeRunTime []int   `json:"episode_run_time"`
	Genres         []genre `json:"genres"`
	PosterPath     string  `json:"poster_path"`
	BackdropPath   string  `json:"backdrop_path"`
	Videos         struct {
		Results []video `json:"results"`
	} `json:"videos"`
	ReleaseDates struct {
		Results []releaseCountry `json:"results"`
	} `json:"release_dates"`
	ContentRatings struct {
		Results []contentRating `json:"results"`
	} `json:"content_ratings"`
}

type genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type video struct {
	Key      string `json:"key"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Official bool   `json:"official"`
}

type releaseCountry struct {
	Country      string `json:"iso_3166_1"`
	ReleaseDates []struct {
		Certification string `json:"certification"`
	} `json:"release_dates"`
}

type contentRating struct {
	Country string `json:"iso_3166_1"`
	Rating  string `json:"rating"`
}

type searchPage struct {
	Page    int `json:"page"`
	Results []struct {
		ID           int64   `json:"id"`
		MediaType    string  `json:"media_type"`
		Title        string  `json:"title"`
		Name         string  `json:"name"`
		Overview     string  `json:"overview"`
		ReleaseDate  string  `json:"release_date"`
		FirstAirDate string  `json:"first_air_date"`
		Popularity   float64 `json:"popularity"`
	} `json:"results"`
	TotalResults int `json:"total_results"`
}
