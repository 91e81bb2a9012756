// Code generated by a small shell script at authoring time; do not hand-edit.
// Declares the 256 assembly stub entry points defined in stubs_386.s and the
// table gate.Init walks to populate the IDT.
package irq

func stub0()
func stub1()
func stub2()
func stub3()
func stub4()
func stub5()
func stub6()
func stub7()
func stub8()
func stub9()
func stub10()
func stub11()
func stub12()
func stub13()
func stub14()
func stub15()
func stub16()
func stub17()
func stub18()
func stub19()
func stub20()
func stub21()
func stub22()
func stub23()
func stub24()
func stub25()
func stub26()
func stub27()
func stub28()
func stub29()
func stub30()
func stub31()
func stub32()
func stub33()
func stub34()
func stub35()
func stub36()
func stub37()
func stub38()
func stub39()
func stub40()
func stub41()
func stub42()
func stub43()
func stub44()
func stub45()
func stub46()
func stub47()
func stub48()
func stub49()
func stub50()
func stub51()
func stub52()
func stub53()
func stub54()
func stub55()
func stub56()
func stub57()
func stub58()
func stub59()
func stub60()
func stub61()
func stub62()
func stub63()
func stub64()
func stub65()
func stub66()
func stub67()
func stub68()
func stub69()
func stub70()
func stub71()
func stub72()
func stub73()
func stub74()
func stub75()
func stub76()
func stub77()
func stub78()
func stub79()
func stub80()
func stub81()
func stub82()
func stub83()
func stub84()
func stub85()
func stub86()
func stub87()
func stub88()
func stub89()
func stub90()
func stub91()
func stub92()
func stub93()
func stub94()
func stub95()
func stub96()
func stub97()
func stub98()
func stub99()
func stub100()
func stub101()
func stub102()
func stub103()
func stub104()
func stub105()
func stub106()
func stub107()
func stub108()
func stub109()
func stub110()
func stub111()
func stub112()
func stub113()
func stub114()
func stub115()
func stub116()
func stub117()
func stub118()
func stub119()
func stub120()
func stub121()
func stub122()
func stub123()
func stub124()
func stub125()
func stub126()
func stub127()
func stub128()
func stub129()
func stub130()
func stub131()
func stub132()
func stub133()
func stub134()
func stub135()
func stub136()
func stub137()
func stub138()
func stub139()
func stub140()
func stub141()
func stub142()
func stub143()
func stub144()
func stub145()
func stub146()
func stub147()
func stub148()
func stub149()
func stub150()
func stub151()
func stub152()
func stub153()
func stub154()
func stub155()
func stub156()
func stub157()
func stub158()
func stub159()
func stub160()
func stub161()
func stub162()
func stub163()
func stub164()
func stub165()
func stub166()
func stub167()
func stub168()
func stub169()
func stub170()
func stub171()
func stub172()
func stub173()
func stub174()
func stub175()
func stub176()
func stub177()
func stub178()
func stub179()
func stub180()
func stub181()
func stub182()
func stub183()
func stub184()
func stub185()
func stub186()
func stub187()
func stub188()
func stub189()
func stub190()
func stub191()
func stub192()
func stub193()
func stub194()
func stub195()
func stub196()
func stub197()
func stub198()
func stub199()
func stub200()
func stub201()
func stub202()
func stub203()
func stub204()
func stub205()
func stub206()
func stub207()
func stub208()
func stub209()
func stub210()
func stub211()
func stub212()
func stub213()
func stub214()
func stub215()
func stub216()
func stub217()
func stub218()
func stub219()
func stub220()
func stub221()
func stub222()
func stub223()
func stub224()
func stub225()
func stub226()
func stub227()
func stub228()
func stub229()
func stub230()
func stub231()
func stub232()
func stub233()
func stub234()
func stub235()
func stub236()
func stub237()
func stub238()
func stub239()
func stub240()
func stub241()
func stub242()
func stub243()
func stub244()
func stub245()
func stub246()
func stub247()
func stub248()
func stub249()
func stub250()
func stub251()
func stub252()
func stub253()
func stub254()
func stub255()

var stubTable = [256]func(){
	stub0,
	stub1,
	stub2,
	stub3,
	stub4,
	stub5,
	stub6,
	stub7,
	stub8,
	stub9,
	stub10,
	stub11,
	stub12,
	stub13,
	stub14,
	stub15,
	stub16,
	stub17,
	stub18,
	stub19,
	stub20,
	stub21,
	stub22,
	stub23,
	stub24,
	stub25,
	stub26,
	stub27,
	stub28,
	stub29,
	stub30,
	stub31,
	stub32,
	stub33,
	stub34,
	stub35,
	stub36,
	stub37,
	stub38,
	stub39,
	stub40,
	stub41,
	stub42,
	stub43,
	stub44,
	stub45,
	stub46,
	stub47,
	stub48,
	stub49,
	stub50,
	stub51,
	stub52,
	stub53,
	stub54,
	stub55,
	stub56,
	stub57,
	stub58,
	stub59,
	stub60,
	stub61,
	stub62,
	stub63,
	stub64,
	stub65,
	stub66,
	stub67,
	stub68,
	stub69,
	stub70,
	stub71,
	stub72,
	stub73,
	stub74,
	stub75,
	stub76,
	stub77,
	stub78,
	stub79,
	stub80,
	stub81,
	stub82,
	stub83,
	stub84,
	stub85,
	stub86,
	stub87,
	stub88,
	stub89,
	stub90,
	stub91,
	stub92,
	stub93,
	stub94,
	stub95,
	stub96,
	stub97,
	stub98,
	stub99,
	stub100,
	stub101,
	stub102,
	stub103,
	stub104,
	stub105,
	stub106,
	stub107,
	stub108,
	stub109,
	stub110,
	stub111,
	stub112,
	stub113,
	stub114,
	stub115,
	stub116,
	stub117,
	stub118,
	stub119,
	stub120,
	stub121,
	stub122,
	stub123,
	stub124,
	stub125,
	stub126,
	stub127,
	stub128,
	stub129,
	stub130,
	stub131,
	stub132,
	stub133,
	stub134,
	stub135,
	stub136,
	stub137,
	stub138,
	stub139,
	stub140,
	stub141,
	stub142,
	stub143,
	stub144,
	stub145,
	stub146,
	stub147,
	stub148,
	stub149,
	stub150,
	stub151,
	stub152,
	stub153,
	stub154,
	stub155,
	stub156,
	stub157,
	stub158,
	stub159,
	stub160,
	stub161,
	stub162,
	stub163,
	stub164,
	stub165,
	stub166,
	stub167,
	stub168,
	stub169,
	stub170,
	stub171,
	stub172,
	stub173,
	stub174,
	stub175,
	stub176,
	stub177,
	stub178,
	stub179,
	stub180,
	stub181,
	stub182,
	stub183,
	stub184,
	stub185,
	stub186,
	stub187,
	stub188,
	stub189,
	stub190,
	stub191,
	stub192,
	stub193,
	stub194,
	stub195,
	stub196,
	stub197,
	stub198,
	stub199,
	stub200,
	stub201,
	stub202,
	stub203,
	stub204,
	stub205,
	stub206,
	stub207,
	stub208,
	stub209,
	stub210,
	stub211,
	stub212,
	stub213,
	stub214,
	stub215,
	stub216,
	stub217,
	stub218,
	stub219,
	stub220,
	stub221,
	stub222,
	stub223,
	stub224,
	stub225,
	stub226,
	stub227,
	stub228,
	stub229,
	stub230,
	stub231,
	stub232,
	stub233,
	stub234,
	stub235,
	stub236,
	stub237,
	stub238,
	stub239,
	stub240,
	stub241,
	stub242,
	stub243,
	stub244,
	stub245,
	stub246,
	stub247,
	stub248,
	stub249,
	stub250,
	stub251,
	stub252,
	stub253,
	stub254,
	stub255,
}
