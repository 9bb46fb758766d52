// Package datasettest generates listings frames for tests.
package datasettest

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/nycprice/dataset"
)

// SampleCSV is a short excerpt of the listings sample with the quirks the cleaning
// step has to handle: quoted names with commas, empty last_review, a zero price and a
// listing outside the NYC bounding box.
const SampleCSV = `id,name,host_id,host_name,neighbourhood_group,neighbourhood,latitude,longitude,room_type,price,minimum_nights,number_of_reviews,last_review,reviews_per_month,calculated_host_listings_count,availability_365
2539,Clean & quiet apt home by the park,2787,John,Brooklyn,Kensington,40.64749,-73.97237,Private room,149,1,9,2018-10-19,0.21,6,365
2595,Skylit Midtown Castle,2845,Jennifer,Manhattan,Midtown,40.75362,-73.98377,Entire home/apt,225,1,45,2019-05-21,0.38,2,355
3647,"THE VILLAGE OF HARLEM, NEW YORK !",4632,Elisabeth,Manhattan,Harlem,40.80902,-73.94190,Private room,150,3,0,,,1,365
3831,Cozy Entire Floor of Brownstone,4869,LisaRoxanne,Brooklyn,Clinton Hill,40.68514,-73.95976,Entire home/apt,89,1,270,2019-07-05,4.64,1,194
5022,Entire Apt: Spacious Studio/Loft by central park,7192,Laura,Manhattan,East Harlem,40.79851,-73.94399,Entire home/apt,80,10,9,2018-11-19,0.10,1,0
5099,Large Cozy 1 BR Apartment In Midtown East,7322,Chris,Manhattan,Murray Hill,40.74767,-73.97500,Entire home/apt,200,3,74,2019-06-22,0.59,1,129
5121,BlissArtsSpace!,7356,Garon,Brooklyn,Bedford-Stuyvesant,40.68688,-73.95596,Private room,60,45,49,2017-10-05,0.40,1,0
5178,Large Furnished Room Near B'way,8967,Shunichi,Manhattan,Hell's Kitchen,40.76489,-73.98493,Private room,79,2,430,2019-06-24,3.47,1,220
5203,Cozy Clean Guest Room - Family Apt,7490,MaryEllen,Manhattan,Upper West Side,40.80178,-73.96723,Private room,0,2,118,2017-07-21,0.99,1,0
5238,Cute & Cozy Lower East Side 1 bdrm,7549,Ben,Manhattan,Chinatown,40.71344,-73.99037,Entire home/apt,150,1,160,2019-06-09,1.33,4,188
7750,Huge 2 BR Upper East  Cental Park,17985,Sing,Manhattan,East Harlem,40.79685,-73.94872,Entire home/apt,190,7,0,,,2,249
8505,Sunny Bedroom Across Prospect Park,25326,Gregory,Brooklyn,Windsor Terrace,40.65599,-73.97519,Private room,60,1,19,2019-06-23,0.16,2,0
9999,Lake house far upstate,1,Out,Queens,Nowhere,42.10000,-74.90000,Entire home/apt,120,2,5,2019-01-01,0.10,1,10
`

// Sample parses SampleCSV.
func Sample() *dataset.Frame {
	f, err := dataset.ReadCSV(strings.NewReader(SampleCSV))
	if err != nil {
		panic(err)
	}
	return f
}

var (
	neighbourhoods = map[string][]string{
		"Bronx":         {"Mott Haven", "Fordham"},
		"Brooklyn":      {"Williamsburg", "Bushwick", "Park Slope"},
		"Manhattan":     {"Harlem", "Midtown", "Chelsea"},
		"Queens":        {"Astoria", "Flushing"},
		"Staten Island": {"St. George"},
	}
	groupWeights = []float64{0.02, 0.41, 0.44, 0.12, 0.01}
	centers      = map[string][2]float64{
		"Bronx":         {40.85, -73.88},
		"Brooklyn":      {40.68, -73.95},
		"Manhattan":     {40.76, -73.98},
		"Queens":        {40.73, -73.83},
		"Staten Island": {40.60, -74.10},
	}
	roomBase  = map[string]float64{"Entire home/apt": 190, "Private room": 85, "Shared room": 55, "Hotel room": 210}
	roomTypes = []string{"Entire home/apt", "Private room", "Shared room"}
	words     = []string{"cozy", "sunny", "spacious", "studio", "loft", "room", "apartment", "park", "view", "quiet", "modern", "bright", "private", "luxury", "charming"}
)

// Synthetic returns n listings drawn from a fixed distribution. Prices depend on room
// type, borough and minimum nights so that models have signal to learn.
func Synthetic(n int, seed uint64) *dataset.Frame {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	records := make([][]string, n)
	for i := 0; i < n; i++ {
		group := pickWeighted(rng, dataset.NeighbourhoodGroups, groupWeights)
		hood := neighbourhoods[group][rng.IntN(len(neighbourhoods[group]))]
		room := roomTypes[rng.IntN(len(roomTypes))]
		c := centers[group]
		lat := c[0] + rng.NormFloat64()*0.02
		lon := c[1] + rng.NormFloat64()*0.02
		nights := 1 + rng.IntN(10)
		reviews := rng.IntN(200)

		price := roomBase[room] + rng.NormFloat64()*15 - float64(nights)
		if group == "Manhattan" {
			price += 60
		}
		nameWords := []string{words[rng.IntN(len(words))], words[rng.IntN(len(words))], words[rng.IntN(len(words))]}
		if price > 200 {
			nameWords = append(nameWords, "luxury")
		}

		lastReview, perMonth := "", ""
		if reviews > 0 {
			lastReview = fmt.Sprintf("2019-%02d-%02d", 1+rng.IntN(7), 1+rng.IntN(28))
			perMonth = strconv.FormatFloat(float64(reviews)/48, 'f', 2, 64)
		}

		records[i] = []string{
			strconv.Itoa(10000 + i),
			strings.Join(nameWords, " "),
			strconv.Itoa(500 + rng.IntN(300)),
			"host",
			group,
			hood,
			strconv.FormatFloat(lat, 'f', 5, 64),
			strconv.FormatFloat(lon, 'f', 5, 64),
			room,
			strconv.Itoa(int(max(price, 20))),
			strconv.Itoa(nights),
			strconv.Itoa(reviews),
			lastReview,
			perMonth,
			strconv.Itoa(1 + rng.IntN(3)),
			strconv.Itoa(rng.IntN(366)),
		}
	}
	f, err := dataset.New(dataset.Listings.Names(), records)
	if err != nil {
		panic(err)
	}
	return f
}

func pickWeighted(rng *rand.Rand, items []string, weights []float64) string {
	u := rng.Float64()
	acc := 0.0
	for i, w := range weights {
		acc += w
		if u < acc {
			return items[i]
		}
	}
	return items[len(items)-1]
}
