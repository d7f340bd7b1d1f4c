// Package pilar classifies photos of waste into a waste type and an
// organic or inorganic category using a trained model artifact.
//
// Quick start:
//
//	p, err := pilar.New(pilar.WithArtifactPath("models/artifact.json"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	data, _ := os.ReadFile("banana_peel.jpg")
//	res, _ := p.Classify(data)
//	fmt.Println(res.WasteType, res.CategoryLabel) // Sisa Makanan Sampah Organik
//
// A Pilar instance is safe for concurrent use. Create once, reuse across
// requests.
package pilar
