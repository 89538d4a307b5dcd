package service

import "kidnector/internal/models"

// seedAffirmations is the starter catalog for a new project
var seedAffirmations = []models.NewAffirmation{
	{Text: "I am kind to my family and friends", AgeMin: 6, AgeMax: 12, Category: "kindness"},
	{Text: "I am brave and can handle new challenges", AgeMin: 6, AgeMax: 12, Category: "confidence"},
	{Text: "I am grateful for the people who love me", AgeMin: 6, AgeMax: 12, Category: "gratitude"},
	{Text: "I learn from my mistakes and keep growing", AgeMin: 7, AgeMax: 12, Category: "growth"},
	{Text: "I am a good friend who listens and cares", AgeMin: 6, AgeMax: 12, Category: "kindness"},
	{Text: "I can control my emotions when I'm upset", AgeMin: 8, AgeMax: 12, Category: "confidence"},
	{Text: "I am thankful for my home and family", AgeMin: 6, AgeMax: 10, Category: "gratitude"},
	{Text: "I try my best even when things are hard", AgeMin: 7, AgeMax: 12, Category: "growth"},
	{Text: "I use my words kindly, not to hurt others", AgeMin: 6, AgeMax: 12, Category: "kindness"},
	{Text: "I believe in myself and my abilities", AgeMin: 8, AgeMax: 12, Category: "confidence"},
	{Text: "I appreciate the food, toys, and books I have", AgeMin: 6, AgeMax: 10, Category: "gratitude"},
	{Text: "When I make a mistake, I say sorry and do better", AgeMin: 7, AgeMax: 12, Category: "growth"},
	{Text: "I help others when they need me", AgeMin: 6, AgeMax: 12, Category: "kindness"},
	{Text: "I can speak up for what I believe is right", AgeMin: 9, AgeMax: 12, Category: "confidence"},
	{Text: "I say thank you to people who help me", AgeMin: 6, AgeMax: 10, Category: "gratitude"},
	{Text: "I keep practicing until I get better at things", AgeMin: 7, AgeMax: 12, Category: "growth"},
	{Text: "I include others and don't leave anyone out", AgeMin: 7, AgeMax: 12, Category: "kindness"},
	{Text: "I am proud of the unique person I am", AgeMin: 8, AgeMax: 12, Category: "confidence"},
	{Text: "I notice the beautiful things around me every day", AgeMin: 6, AgeMax: 12, Category: "gratitude"},
	{Text: "I ask questions when I don't understand something", AgeMin: 7, AgeMax: 12, Category: "growth"},
}
