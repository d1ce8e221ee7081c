package fallback

// DefaultTopics returns the built-in topic table in match order.
func DefaultTopics() []Topic {
	return []Topic{
		{
			Intent:   IntentCrop,
			Keywords: []string{"crop", "फसल"},
			Replies: map[string]string{
				"hi": "🌾 फसल सलाह: रबी मौसम में गेहूं और सरसों अच्छे विकल्प हैं। बुवाई से पहले मिट्टी की जांच कराएं, प्रमाणित बीज लें और सिंचाई की योजना बनाएं। अपने खेत का आकार और सिंचाई का साधन बताएं तो मैं और सटीक सलाह दे सकता हूँ।",
				"en": "🌾 Crop advice: wheat and mustard are good choices for the rabi season. Test your soil before sowing, use certified seed and plan irrigation. Tell me your land size and water source for more specific advice.",
			},
			Suggestions: []string{"मिट्टी की जांच कैसे कराएं?", "गेहूं की बुवाई का सही समय?", "कौन सा बीज अच्छा है?"},
		},
		{
			Intent:   IntentLoan,
			Keywords: []string{"loan", "ऋण", "कर्ज"},
			Replies: map[string]string{
				"hi": "💰 ऋण सहायता: किसान क्रेडिट कार्ड (KCC) से ₹3 लाख तक का फसल ऋण लगभग 7% ब्याज पर मिलता है, और समय पर चुकाने पर 3% की छूट मिलती है। आधार, जमीन के कागज़ और बैंक पासबुक लेकर नजदीकी बैंक शाखा जाएं।",
				"en": "💰 Loan help: a Kisan Credit Card (KCC) gives crop loans up to ₹3 lakh at about 7% interest, with a 3% rebate for timely repayment. Visit your nearest bank branch with Aadhaar, land records and your passbook.",
			},
			Suggestions: []string{"KCC के लिए आवेदन कैसे करें?", "मेरा कर्ज कब तक चुकेगा?", "सबसे कम ब्याज वाला बैंक?"},
		},
		{
			Intent:   IntentMarket,
			Keywords: []string{"market", "मंडी", "भाव"},
			Replies: map[string]string{
				"hi": "📊 मंडी भाव: आज गेहूं लगभग ₹2,180 प्रति क्विंटल और सरसों लगभग ₹5,200 प्रति क्विंटल पर चल रहा है। बेचने से पहले पास की दो-तीन मंडियों के भाव eNAM पर मिलाएं।",
				"en": "📊 Market prices: wheat is trading near ₹2,180 per quintal and mustard near ₹5,200 per quintal. Compare two or three nearby mandis on eNAM before you sell.",
			},
			Suggestions: []string{"गेहूं कब बेचें?", "पास की मंडी कौन सी है?", "MSP क्या है?"},
		},
		{
			Intent:   IntentRisk,
			Keywords: []string{"risk", "weather", "जोखिम", "मौसम"},
			Replies: map[string]string{
				"hi": "⚠️ मौसम और जोखिम: अगले कुछ दिनों में हल्की बारिश की संभावना है। कटाई की योजना उसी हिसाब से बनाएं और प्रधानमंत्री फसल बीमा योजना में अपनी फसल का बीमा जरूर कराएं।",
				"en": "⚠️ Weather and risk: light rain is likely over the next few days. Plan your harvest accordingly and insure your crop under PM Fasal Bima Yojana.",
			},
			Suggestions: []string{"फसल बीमा कैसे लें?", "कीट से बचाव कैसे करें?", "सूखे में क्या करें?"},
		},
		{
			Intent:   IntentCalendar,
			Keywords: []string{"calendar", "कैलेंडर"},
			Replies: map[string]string{
				"hi": "📅 फसल कैलेंडर: गेहूं की बुवाई नवंबर के पहले पखवाड़े में, पहली सिंचाई 21 दिन बाद, और कटाई मार्च-अप्रैल में करें। धान की रोपाई जून-जुलाई में होती है।",
				"en": "📅 Crop calendar: sow wheat in the first half of November, give the first irrigation after 21 days and harvest in March-April. Paddy is transplanted in June-July.",
			},
			Suggestions: []string{"सिंचाई कब करें?", "खाद कब डालें?", "धान की रोपाई कब करें?"},
		},
		{
			Intent:   IntentScheme,
			Keywords: []string{"scheme", "योजना"},
			Replies: map[string]string{
				"hi": "🏛️ सरकारी योजनाएं: PM-KISAN में हर साल ₹6,000 मिलते हैं, ड्रिप सिंचाई पर ₹50,000 तक सब्सिडी है, और बीज पर ₹500 प्रति क्विंटल सब्सिडी मिलती है। PM-KISAN हेल्पलाइन: 1800-180-1551।",
				"en": "🏛️ Government schemes: PM-KISAN pays ₹6,000 a year, drip irrigation has subsidies up to ₹50,000 and seed subsidy is ₹500 per quintal. PM-KISAN helpline: 1800-180-1551.",
			},
			Suggestions: []string{"PM-KISAN में नाम कैसे जोड़ें?", "ड्रिप सब्सिडी के लिए आवेदन?", "बीज सब्सिडी कहां मिलेगी?"},
		},
	}
}

// GenericTopic is returned when no keyword matches.
func GenericTopic() Topic {
	return Topic{
		Intent: IntentGeneral,
		Replies: map[string]string{
			"hi": "🙏 मैं आपकी फसल, ऋण, मंडी भाव, मौसम जोखिम, फसल कैलेंडर और सरकारी योजनाओं के बारे में मदद कर सकता हूँ। कृपया अपना सवाल थोड़ा और बताएं।",
			"en": "🙏 I can help with crops, loans, market prices, weather risk, the crop calendar and government schemes. Please tell me a little more about your question.",
		},
		Suggestions: []string{"फसल की सलाह", "ऋण की जानकारी", "आज के मंडी भाव"},
	}
}
