package activity

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the presentation family of an item.
type Kind string

const (
	KindQuiz     Kind = "trivia"
	KindPoll     Kind = "poll"
	KindRiddle   Kind = "riddle"
	KindReaction Kind = "reaction"
)

// NoCorrectAnswer marks an item with no correct option.
const NoCorrectAnswer = -1

// Item is one static filler entry.
type Item struct {
	ID        string        `json:"id"`
	Kind      Kind          `json:"type"`
	Prompt    string        `json:"question"`
	Options   []string      `json:"options"`
	Answer    int           `json:"answer"`
	TimeLimit time.Duration `json:"time_limit"`
}

// Scored reports whether answers to the item are marked right or wrong.
func (i Item) Scored() bool {
	switch i.Kind {
	case KindQuiz, KindRiddle, KindReaction:
		return true
	}
	return false
}

var ErrInvalidItem = errors.New("invalid activity item")

// Validate checks an item is playable.
func (i Item) Validate() error {
	if len(i.Options) < 2 {
		return fmt.Errorf("%w: %s has %d options", ErrInvalidItem, i.ID, len(i.Options))
	}
	if i.TimeLimit <= 0 {
		return fmt.Errorf("%w: %s has no time limit", ErrInvalidItem, i.ID)
	}
	if i.Scored() && (i.Answer < 0 || i.Answer >= len(i.Options)) {
		return fmt.Errorf("%w: %s answer %d out of range", ErrInvalidItem, i.ID, i.Answer)
	}
	if !i.Scored() && i.Answer != NoCorrectAnswer {
		return fmt.Errorf("%w: poll %s has an answer", ErrInvalidItem, i.ID)
	}
	return nil
}

// DefaultCatalog returns a copy of the built-in activity bank.
func DefaultCatalog() []Item {
	out := make([]Item, len(bank))
	copy(out, bank)
	return out
}

var bank = []Item{
	{ID: "t1", Kind: KindQuiz, Prompt: "What is the tallest mountain on Earth?", Options: []string{"K2", "Mount Everest", "Kangchenjunga", "Lhotse"}, Answer: 1, TimeLimit: 10 * time.Second},
	{ID: "t2", Kind: KindQuiz, Prompt: "Which planet has the most moons?", Options: []string{"Jupiter", "Saturn", "Uranus", "Neptune"}, Answer: 1, TimeLimit: 10 * time.Second},
	{ID: "t3", Kind: KindQuiz, Prompt: "What year did the Titanic sink?", Options: []string{"1910", "1912", "1914", "1916"}, Answer: 1, TimeLimit: 10 * time.Second},
	{ID: "t4", Kind: KindQuiz, Prompt: "What is the smallest country in the world?", Options: []string{"Monaco", "Vatican City", "San Marino", "Liechtenstein"}, Answer: 1, TimeLimit: 10 * time.Second},
	{ID: "t5", Kind: KindQuiz, Prompt: "How many bones are in the human body?", Options: []string{"186", "196", "206", "216"}, Answer: 2, TimeLimit: 10 * time.Second},
	{ID: "t6", Kind: KindQuiz, Prompt: "What element does \"O\" represent on the periodic table?", Options: []string{"Osmium", "Oxygen", "Oganesson", "Gold"}, Answer: 1, TimeLimit: 8 * time.Second},
	{ID: "t7", Kind: KindQuiz, Prompt: "Which ocean is the deepest?", Options: []string{"Atlantic", "Indian", "Pacific", "Arctic"}, Answer: 2, TimeLimit: 10 * time.Second},
	{ID: "t8", Kind: KindQuiz, Prompt: "Who painted the Mona Lisa?", Options: []string{"Michelangelo", "Raphael", "Da Vinci", "Botticelli"}, Answer: 2, TimeLimit: 8 * time.Second},
	{ID: "t9", Kind: KindQuiz, Prompt: "What is the speed of light (km/s)?", Options: []string{"150,000", "200,000", "300,000", "400,000"}, Answer: 2, TimeLimit: 10 * time.Second},
	{ID: "t10", Kind: KindQuiz, Prompt: "Which country invented pizza?", Options: []string{"Greece", "France", "Italy", "Spain"}, Answer: 2, TimeLimit: 8 * time.Second},
	{ID: "t11", Kind: KindQuiz, Prompt: "How many hearts does an octopus have?", Options: []string{"1", "2", "3", "4"}, Answer: 2, TimeLimit: 10 * time.Second},
	{ID: "t12", Kind: KindQuiz, Prompt: "What is the hardest natural substance?", Options: []string{"Titanium", "Diamond", "Quartz", "Topaz"}, Answer: 1, TimeLimit: 8 * time.Second},
	{ID: "t13", Kind: KindQuiz, Prompt: "Which language has the most native speakers?", Options: []string{"English", "Spanish", "Mandarin", "Hindi"}, Answer: 2, TimeLimit: 10 * time.Second},
	{ID: "t14", Kind: KindQuiz, Prompt: "What is the largest organ in the human body?", Options: []string{"Liver", "Brain", "Skin", "Lungs"}, Answer: 2, TimeLimit: 10 * time.Second},
	{ID: "t15", Kind: KindQuiz, Prompt: "In what year did humans first land on the Moon?", Options: []string{"1967", "1968", "1969", "1970"}, Answer: 2, TimeLimit: 8 * time.Second},
	{ID: "t16", Kind: KindQuiz, Prompt: "What gas do plants primarily absorb?", Options: []string{"Oxygen", "Nitrogen", "Carbon Dioxide", "Helium"}, Answer: 2, TimeLimit: 8 * time.Second},
	{ID: "t17", Kind: KindQuiz, Prompt: "Which animal can sleep for 3 years?", Options: []string{"Sloth", "Snail", "Koala", "Cat"}, Answer: 1, TimeLimit: 10 * time.Second},
	{ID: "t18", Kind: KindQuiz, Prompt: "What is the capital of Australia?", Options: []string{"Sydney", "Melbourne", "Canberra", "Brisbane"}, Answer: 2, TimeLimit: 8 * time.Second},
	{ID: "p1", Kind: KindPoll, Prompt: "Cats or dogs?", Options: []string{"🐱 Cats", "🐶 Dogs"}, Answer: NoCorrectAnswer, TimeLimit: 8 * time.Second},
	{ID: "p2", Kind: KindPoll, Prompt: "Morning person or night owl?", Options: []string{"🌅 Morning", "🌙 Night"}, Answer: NoCorrectAnswer, TimeLimit: 8 * time.Second},
	{ID: "p3", Kind: KindPoll, Prompt: "Beach vacation or mountain retreat?", Options: []string{"🏖️ Beach", "🏔️ Mountains"}, Answer: NoCorrectAnswer, TimeLimit: 8 * time.Second},
	{ID: "p4", Kind: KindPoll, Prompt: "Superpower: flight or invisibility?", Options: []string{"✈️ Flight", "👻 Invisibility"}, Answer: NoCorrectAnswer, TimeLimit: 8 * time.Second},
	{ID: "p5", Kind: KindPoll, Prompt: "Pizza or tacos?", Options: []string{"🍕 Pizza", "🌮 Tacos"}, Answer: NoCorrectAnswer, TimeLimit: 8 * time.Second},
	{ID: "p6", Kind: KindPoll, Prompt: "Time travel: past or future?", Options: []string{"⏪ Past", "⏩ Future"}, Answer: NoCorrectAnswer, TimeLimit: 8 * time.Second},
	{ID: "p7", Kind: KindPoll, Prompt: "Rainy day or sunny day?", Options: []string{"🌧️ Rain", "☀️ Sun"}, Answer: NoCorrectAnswer, TimeLimit: 8 * time.Second},
	{ID: "p8", Kind: KindPoll, Prompt: "Sweet or savory?", Options: []string{"🍰 Sweet", "🧀 Savory"}, Answer: NoCorrectAnswer, TimeLimit: 8 * time.Second},
	{ID: "p9", Kind: KindPoll, Prompt: "Live forever or live twice?", Options: []string{"♾️ Forever", "🔄 Twice"}, Answer: NoCorrectAnswer, TimeLimit: 8 * time.Second},
	{ID: "p10", Kind: KindPoll, Prompt: "Teleportation or time stop?", Options: []string{"🌀 Teleport", "⏸️ Time Stop"}, Answer: NoCorrectAnswer, TimeLimit: 8 * time.Second},
	{ID: "r1", Kind: KindRiddle, Prompt: "I have cities but no houses, mountains but no trees. What am I?", Options: []string{"A globe", "A map", "A painting", "A dream"}, Answer: 1, TimeLimit: 12 * time.Second},
	{ID: "r2", Kind: KindRiddle, Prompt: "What has hands but can't clap?", Options: []string{"A statue", "A clock", "A tree", "A glove"}, Answer: 1, TimeLimit: 12 * time.Second},
	{ID: "r3", Kind: KindRiddle, Prompt: "I speak without a mouth and hear without ears. What am I?", Options: []string{"A shadow", "An echo", "The wind", "A thought"}, Answer: 1, TimeLimit: 12 * time.Second},
	{ID: "r4", Kind: KindRiddle, Prompt: "The more you take, the more you leave behind. What am I?", Options: []string{"Memories", "Breaths", "Footsteps", "Photos"}, Answer: 2, TimeLimit: 12 * time.Second},
	{ID: "r5", Kind: KindRiddle, Prompt: "What can travel around the world while staying in a corner?", Options: []string{"A spider", "A stamp", "Wi-Fi", "A shadow"}, Answer: 1, TimeLimit: 12 * time.Second},
	{ID: "r6", Kind: KindRiddle, Prompt: "What has a head and a tail but no body?", Options: []string{"A snake", "A coin", "A comet", "A pin"}, Answer: 1, TimeLimit: 12 * time.Second},
	{ID: "r7", Kind: KindRiddle, Prompt: "What gets wetter the more it dries?", Options: []string{"A sponge", "A towel", "The sun", "Sand"}, Answer: 1, TimeLimit: 12 * time.Second},
	{ID: "r8", Kind: KindRiddle, Prompt: "What has keys but no locks?", Options: []string{"A keyboard", "A piano", "A map", "Both A & B"}, Answer: 3, TimeLimit: 12 * time.Second},
	{ID: "r9", Kind: KindRiddle, Prompt: "What can you catch but not throw?", Options: []string{"A ball", "A cold", "A fish", "A wave"}, Answer: 1, TimeLimit: 12 * time.Second},
	{ID: "r10", Kind: KindRiddle, Prompt: "I have teeth but cannot bite. What am I?", Options: []string{"A saw", "A comb", "A zipper", "A gear"}, Answer: 1, TimeLimit: 12 * time.Second},
	{ID: "x1", Kind: KindReaction, Prompt: "Quick! What's 7 × 8?", Options: []string{"48", "54", "56", "64"}, Answer: 2, TimeLimit: 5 * time.Second},
	{ID: "x2", Kind: KindReaction, Prompt: "Quick! Capital of Japan?", Options: []string{"Seoul", "Beijing", "Tokyo", "Osaka"}, Answer: 2, TimeLimit: 5 * time.Second},
	{ID: "x3", Kind: KindReaction, Prompt: "Quick! How many sides on a hexagon?", Options: []string{"5", "6", "7", "8"}, Answer: 1, TimeLimit: 5 * time.Second},
	{ID: "x4", Kind: KindReaction, Prompt: "Quick! What color do you get mixing red and blue?", Options: []string{"Green", "Orange", "Purple", "Brown"}, Answer: 2, TimeLimit: 5 * time.Second},
	{ID: "x5", Kind: KindReaction, Prompt: "Quick! Largest continent?", Options: []string{"Africa", "Asia", "Europe", "N. America"}, Answer: 1, TimeLimit: 5 * time.Second},
	{ID: "x6", Kind: KindReaction, Prompt: "Quick! 144 ÷ 12?", Options: []string{"10", "11", "12", "13"}, Answer: 2, TimeLimit: 5 * time.Second},
	{ID: "x7", Kind: KindReaction, Prompt: "Quick! How many strings on a standard guitar?", Options: []string{"4", "5", "6", "7"}, Answer: 2, TimeLimit: 5 * time.Second},
	{ID: "x8", Kind: KindReaction, Prompt: "Quick! What's the chemical formula for water?", Options: []string{"CO2", "H2O", "NaCl", "O2"}, Answer: 1, TimeLimit: 5 * time.Second},
}
