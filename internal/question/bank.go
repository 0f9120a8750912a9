package question

// bank is the built-in list of conversation starters.
var bank = []string{
	"Among your friends or family, what are you famous for?",
	"Are all individuals morally obligated to save another person's life if they are able? What if that person lives in another country?",
	"Are you usually early or late?",
	"As you get older, what are you becoming more and more afraid of?",
	"Do you always have to have the latest phone?",
	"Do you experience phantom vibration? (Feeling your phone vibrate even though it didn't.)",
	"Do you like going to concerts? Why or why not? What was the last concert you went to?",
	"Do you like spicy food? Why or why not? What is the spiciest thing you have ever eaten?",
	"Do you prefer fiction or nonfiction books?",
	"Do you prefer to go off the beaten path when you travel?",
	"Do you text more or call more? Why?",
	"Do you think that humans will ever be able to live together in harmony?",
	"Does a person's name influence the person they become?",
	"Does having a day off for a holiday increase or decrease productivity at work?",
	"Have you ever saved an animal's life? How about a person's life?",
	"Have your parents influenced what goals you have?",
	"How do you feel if you accidentally leave your phone at home?",
	"How do you relax after a hard day of work?",
	"How much do you plan / prepare for the future?",
	"How much time do you spend on the internet? What do you usually do?",
	"How often do you help others? Who do you help? How do you help?",
	"If all jobs had the same pay and hours, what job would you like to have?",
	"If you could become immortal on the condition you would NEVER be able to die or kill yourself, would you choose immortality?",
	"If you could convince everyone in the world to do one thing at one point in time, what would that thing be?",
	"If you could learn the answer to one question about your future, what would the question be?",
	"If you could press a button and receive a million dollars, but one stranger would die, would you press the button? And if so, how many times?",
	"If you were moving to another country, but could only pack one carry-on sized bag, what would you pack?",
	"Is it better for a person to have a broad knowledge base or a deep knowledge base?",
	"Is there a meaning to life? If so, what is it?",
	"What 'old person' things do you do?",
	"What amazing thing did you do that no one was around to see?",
	"What are some goals you have already achieved? What are some goals you have failed to accomplish?",
	"What are some of the events in your life that made you who you are?",
	"What are some small things that make your day better?",
	"What are you interested in that most people aren't?",
	"What are you most looking forward to in the next 10 years?",
	"What book genres do you like to read?",
	"What can you not get right, no matter how many times you try?",
	"What could you do with two million dollars to impact the most amount of people?",
	"What do a lot of people hope will happen but is just not going to happen?",
	"What do you contribute back to society?",
	"What do you do to make the world a better place?",
	"What do you hope never changes?",
	"What do you need help with most often?",
	"What do you think of tattoos? Do you have any?",
	"What flavor of ice cream do you wish existed?",
	"What hobby would you get into if time and money weren't an issue?",
	"What is something that really annoys you but doesn't bother most people?",
	"What is the luckiest thing that has happened to you?",
	"What is your favorite food?",
	"What languages do you wish you could speak?",
	"What problems will technology solve in the next 5 years? What problems will it create?",
	"What question can you ask to find out the most about a person?",
	"What really needs to be modernized?",
	"What takes up too much of your time?",
	"What was ruined because it became popular?",
	"What was the last funny video you saw?",
	"What was the worst shopping experience you've ever had?",
	"What website do you visit most often?",
	"What would you rate 10 / 10?",
	"What's the best thing that happened to you last week?",
	"What's the hardest lesson you've learned?",
	"When did something start out badly for you but in the end, it was great?",
	"When was the last time you stayed up through the entire night?",
	"Where do you get your news?",
	"Who had the biggest impact on the person you have become? If your parents, who else besides them?",
	"Would you rather be able to teleport anywhere or be able to read minds?",
	"Would you rather be feared by all or loved by all?",
	"Would you rather get 5 dollars for every song you sang in public or 50 dollars for every stranger you kiss?",
	"Would you rather not be able to open any closed doors (locked or unlocked) or not be able to close any open doors?",
}
