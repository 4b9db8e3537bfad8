// internal/core/domain/catalog_data.go
package domain

import "github.com/shopspring/decimal"

func item(id, name string, category Category, price string, stock int, description string) Item {
	return Item{
		ID:          id,
		Name:        name,
		Category:    category,
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
		Description: description,
	}
}

// InitialPostcards is the default postcard catalog
func InitialPostcards() []Item {
	return []Item{
		item("a1b2c3d4", "Greetings from Paris", CategoryTravel, "1.99", 150, "A beautiful postcard showing the Eiffel Tower at sunset."),
		item("f6a7b8c9", "Tokyo Tower", CategoryTravel, "1.99", 180, "A stunning view of the Tokyo Tower illuminated at night."),
		item("e1f2a3b4", "Grand Canyon", CategoryTravel, "1.99", 220, "A breathtaking shot of the Grand Canyon at sunrise."),
		item("a2b3c4d5", "Roman Colosseum", CategoryTravel, "1.99", 190, "A majestic view of the ancient Roman Colosseum."),
		item("travel-new-1", "Machu Picchu Wonder", CategoryTravel, "2.29", 130, "The ancient Incan city high in the Andes Mountains."),

		item("b2c3d4e5", "Starry Night by Van Gogh", CategoryArt, "2.49", 200, "A high-quality print of the famous painting by Vincent van Gogh."),
		item("a7b8c9d0", "The Kiss by Klimt", CategoryArt, "2.49", 120, "A print of Gustav Klimt's iconic Art Nouveau painting."),
		item("f2a3b4c5", "Mona Lisa by da Vinci", CategoryArt, "2.49", 300, "The world-famous portrait by Leonardo da Vinci."),
		item("b3c4d5e6", "The Persistence of Memory", CategoryArt, "2.49", 110, "A print of Salvador Dalí's surrealist masterpiece."),

		item("c3d4e5f6", "Happy Birthday!", CategoryGreeting, "3.99", 500, "A cheerful birthday card with a colorful design."),
		item("b8c9d0e1", "Thank You Card", CategoryGreeting, "2.99", 400, "An elegant card to express your gratitude."),
		item("a3b4c5d6", "Congratulations!", CategoryGreeting, "3.99", 180, "A celebratory card for achievements and special occasions."),

		item("d4e5f6a7", "Vintage Route 66", CategoryVintage, "4.99", 75, "A retro-style postcard featuring a classic American diner on Route 66."),
		item("c9d0e1f2", "1920s Flapper", CategoryVintage, "4.99", 90, "A stylish black and white photo of a flapper from the Roaring Twenties."),

		item("e5f6a7b8", "Merry Christmas", CategoryHoliday, "3.49", 300, "A festive postcard with a snowman and a snowy landscape."),
		item("d0e1f2a3", "Happy Halloween", CategoryHoliday, "3.49", 250, "A spooky and fun Halloween postcard with pumpkins and ghosts."),
		item("c5d6e7f8", "Happy New Year", CategoryHoliday, "3.49", 350, "A festive postcard with fireworks to celebrate the New Year."),
		item("e6f7a8b9", "Happy Thanksgiving", CategoryHoliday, "3.49", 280, "A warm and inviting postcard for Thanksgiving."),
		item("holiday-new-1", "Happy Easter", CategoryHoliday, "3.29", 200, "A cute postcard with Easter eggs and bunnies."),
		item("holiday-new-2", "Happy Valentine's Day", CategoryHoliday, "3.79", 320, "A romantic postcard for your special someone."),
	}
}

// InitialProducts is the default product catalog
func InitialProducts() []Item {
	return []Item{
		item("prod-001", "Wireless Headphones", CategoryElectronics, "89.99", 45, "Over-ear headphones with active noise cancelling."),
		item("prod-002", "Linen Shirt", CategoryApparel, "39.50", 120, "Breathable summer shirt in natural linen."),
		item("prod-003", "Ceramic Teapot", CategoryHome, "24.00", 30, "Hand-glazed teapot, holds four cups."),
		item("prod-004", "Field Guide to Birds", CategoryBooks, "18.75", 60, "Illustrated guide covering 800 species."),
		item("prod-005", "Wooden Train Set", CategoryToys, "54.25", 15, "Forty-piece beech wood train set."),
		item("prod-006", "Smart Desk Lamp", CategoryElectronics, "42.00", 0, "Dimmable LED lamp with USB charging port."),
	}
}

// InitialItems returns the default dataset for a variant
func (v *Variant) InitialItems() []Item {
	switch v.Name {
	case Postcards.Name:
		return InitialPostcards()
	case Products.Name:
		return InitialProducts()
	}
	return nil
}
