package models

import "sort"

// BuildingType is a deployable game-object type with its default economy values
type BuildingType struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	DefaultCost   int64  `json:"default_cost"`
	DefaultProfit int64  `json:"default_profit"`
}

var buildingTypes = map[string]BuildingType{
	"restaurant": {ID: "restaurant", DisplayName: "Restaurant", DefaultCost: 1200, DefaultProfit: 90},
	"bakery":     {ID: "bakery", DisplayName: "Bakery", DefaultCost: 800, DefaultProfit: 55},
	"bank":       {ID: "bank", DisplayName: "Bank", DefaultCost: 5000, DefaultProfit: 320},
	"castle":     {ID: "castle", DisplayName: "Castle", DefaultCost: 15000, DefaultProfit: 700},
	"farm":       {ID: "farm", DisplayName: "Farm", DefaultCost: 600, DefaultProfit: 40},
	"library":    {ID: "library", DisplayName: "Library", DefaultCost: 2000, DefaultProfit: 80},
	"market":     {ID: "market", DisplayName: "Market", DefaultCost: 1800, DefaultProfit: 130},
	"tavern":     {ID: "tavern", DisplayName: "Tavern", DefaultCost: 1000, DefaultProfit: 75},
}

// LookupBuildingType returns the catalog entry for id
func LookupBuildingType(id string) (BuildingType, bool) {
	bt, ok := buildingTypes[id]
	return bt, ok
}

// BuildingTypes lists the catalog ordered by id
func BuildingTypes() []BuildingType {
	out := make([]BuildingType, 0, len(buildingTypes))
	for _, bt := range buildingTypes {
		out = append(out, bt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
