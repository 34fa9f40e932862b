package cli

import "quiz-assessment-service/internal/domain"

// sampleQuizzes backs the in-memory catalog and the seed command.
func sampleQuizzes() []domain.Quiz {
	return []domain.Quiz{
		{
			ID:         "quiz-1",
			Title:      "Fractions and decimals",
			Subject:    "math",
			GradeLevel: "5",
			Questions: []domain.Question{
				{
					ID:            "q1",
					QuizID:        "quiz-1",
					Text:          "What is 1/2 + 1/4?",
					Type:          domain.QuestionMultipleChoice,
					Difficulty:    domain.DifficultyEasy,
					Topic:         "fractions",
					Order:         1,
					Points:        1,
					Options:       []string{"2/6", "3/4", "1/8", "2/4"},
					CorrectAnswer: "3/4",
					HintText:      "Rewrite 1/2 with a denominator of 4 first.",
					Explanation:   "1/2 equals 2/4, and 2/4 + 1/4 = 3/4.",
				},
				{
					ID:            "q2",
					QuizID:        "quiz-1",
					Text:          "0.5 is greater than 0.45.",
					Type:          domain.QuestionTrueFalse,
					Difficulty:    domain.DifficultyMedium,
					Topic:         "decimals",
					Order:         2,
					Points:        1,
					CorrectAnswer: "true",
					Explanation:   "0.50 has more tenths than 0.45.",
				},
				{
					ID:            "q3",
					QuizID:        "quiz-1",
					Text:          "Write 0.75 as a fraction in lowest terms.",
					Type:          domain.QuestionShortAnswer,
					Difficulty:    domain.DifficultyMedium,
					Topic:         "fractions",
					Order:         3,
					Points:        2,
					CorrectAnswer: "3/4",
				},
				{
					ID:            "q4",
					QuizID:        "quiz-1",
					Text:          "Explain why multiplying by 0.1 makes a number smaller.",
					Type:          domain.QuestionEssay,
					Difficulty:    domain.DifficultyHard,
					Topic:         "decimals",
					Order:         4,
					Points:        4,
					CorrectAnswer: "Multiplying by 0.1 is the same as dividing by 10, so every digit moves one place value to the right.",
				},
			},
		},
		{
			ID:         "quiz-2",
			Title:      "Cells and organisms",
			Subject:    "science",
			GradeLevel: "7",
			Adaptive:   true,
			Questions: []domain.Question{
				{
					ID: "s1", QuizID: "quiz-2", Order: 1, Points: 1,
					Text:          "Which organelle produces most of a cell's energy?",
					Type:          domain.QuestionMultipleChoice,
					Difficulty:    domain.DifficultyEasy,
					Topic:         "cells",
					Options:       []string{"Nucleus", "Mitochondria", "Ribosome", "Vacuole"},
					CorrectAnswer: "Mitochondria",
				},
				{
					ID: "s2", QuizID: "quiz-2", Order: 2, Points: 1,
					Text:          "Plant cells have a cell wall.",
					Type:          domain.QuestionTrueFalse,
					Difficulty:    domain.DifficultyEasy,
					Topic:         "cells",
					CorrectAnswer: "true",
				},
				{
					ID: "s3", QuizID: "quiz-2", Order: 3, Points: 1,
					Text:          "Bacteria are eukaryotic organisms.",
					Type:          domain.QuestionTrueFalse,
					Difficulty:    domain.DifficultyEasy,
					Topic:         "organisms",
					CorrectAnswer: "false",
				},
				{
					ID: "s4", QuizID: "quiz-2", Order: 4, Points: 2,
					Text:          "Which process do plants use to turn light into chemical energy?",
					Type:          domain.QuestionMultipleChoice,
					Difficulty:    domain.DifficultyMedium,
					Topic:         "photosynthesis",
					Options:       []string{"Respiration", "Photosynthesis", "Fermentation", "Diffusion"},
					CorrectAnswer: "Photosynthesis",
				},
				{
					ID: "s5", QuizID: "quiz-2", Order: 5, Points: 2,
					Text:          "Name the molecule that carries genetic information.",
					Type:          domain.QuestionShortAnswer,
					Difficulty:    domain.DifficultyMedium,
					Topic:         "genetics",
					CorrectAnswer: "DNA",
				},
				{
					ID: "s6", QuizID: "quiz-2", Order: 6, Points: 3,
					Text:          "Describe how diffusion moves oxygen into a cell.",
					Type:          domain.QuestionShortAnswer,
					Difficulty:    domain.DifficultyHard,
					Topic:         "transport",
					CorrectAnswer: "Oxygen moves from higher concentration outside the cell to lower concentration inside across the membrane.",
				},
			},
		},
	}
}
